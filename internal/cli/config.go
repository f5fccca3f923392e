package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/freshset/internal/collect"
	"github.com/mesh-intelligence/freshset/internal/finetune"
	"github.com/mesh-intelligence/freshset/internal/hub"
	"github.com/mesh-intelligence/freshset/internal/server"
	"github.com/mesh-intelligence/freshset/internal/train"
	"github.com/mesh-intelligence/freshset/pkg/types"
)

const (
	configFileName = "config"
	configFileType = "yaml"
	configFileExt  = "config.yaml"
	sourcesFileExt = "sources.yaml"
	envPrefix      = "FRESHSET"
)

// Config keys.
const (
	cfgKeyBackend       = "backend"
	cfgKeyDataDir       = "data_dir"
	cfgKeyWorkspace     = "workspace"
	cfgKeyLogLevel      = "log.level"
	cfgKeyLogFormat     = "log.format"
	cfgKeyPerState      = "collect.per_state"
	cfgKeyTarget        = "collect.target"
	cfgKeyDelay         = "collect.delay"
	cfgKeyTimeout       = "collect.timeout"
	cfgKeySources       = "collect.sources"
	cfgKeyHFDataset     = "hub.huggingface_dataset"
	cfgKeyKaggleDataset = "hub.kaggle_dataset"
	cfgKeyBaseModel     = "finetune.base_model"
	cfgKeyPollInterval  = "finetune.poll_interval"
	cfgKeyTrainEpochs   = "train.epochs"
	cfgKeyTrainBatch    = "train.batch_size"
	cfgKeyTrainLR       = "train.learning_rate"
	cfgKeyTrainHidden   = "train.hidden"
	cfgKeyTrainPatience = "train.patience"
	cfgKeyTrainSeed     = "train.seed"
	cfgKeyModelDir      = "train.model_dir"
	cfgKeyServerAddr    = "server.addr"
)

// envBound lists the keys that FRESHSET_* variables may override. data_dir,
// workspace and train.model_dir are resolved by the paths package so their
// precedence stays flag > config > env.
var envBound = []string{
	cfgKeyLogLevel, cfgKeyLogFormat,
	cfgKeyBaseModel, cfgKeyPollInterval, cfgKeyServerAddr,
}

var envKeyReplacer = strings.NewReplacer(".", "_")

// configFile holds the structure written to config.yaml.
type configFile struct {
	Backend   string         `yaml:"backend"`
	DataDir   string         `yaml:"data_dir,omitempty"`
	Workspace string         `yaml:"workspace,omitempty"`
	Log       logSection     `yaml:"log"`
	Collect   collectSection `yaml:"collect"`
	Hub       hubSection     `yaml:"hub"`
	Finetune  tuneSection    `yaml:"finetune"`
	Train     trainSection   `yaml:"train"`
	Server    serverSection  `yaml:"server"`
}

type logSection struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type collectSection struct {
	PerState int    `yaml:"per_state"`
	Target   int    `yaml:"target"`
	Delay    string `yaml:"delay"`
	Timeout  string `yaml:"timeout"`
	Sources  string `yaml:"sources,omitempty"`
}

type hubSection struct {
	HuggingFaceDataset string `yaml:"huggingface_dataset"`
	KaggleDataset      string `yaml:"kaggle_dataset"`
}

type tuneSection struct {
	BaseModel    string `yaml:"base_model"`
	PollInterval string `yaml:"poll_interval"`
}

type trainSection struct {
	Epochs       int     `yaml:"epochs"`
	BatchSize    int     `yaml:"batch_size"`
	LearningRate float64 `yaml:"learning_rate"`
	Hidden       int     `yaml:"hidden"`
	Patience     int     `yaml:"patience"`
	Seed         uint64  `yaml:"seed"`
	ModelDir     string  `yaml:"model_dir,omitempty"`
}

type serverSection struct {
	Addr string `yaml:"addr"`
}

// defaultConfig returns the values written on first run and used as viper
// defaults.
func defaultConfig() configFile {
	return configFile{
		Backend: types.BackendSQLite,
		Log:     logSection{Level: "info", Format: "text"},
		Collect: collectSection{
			PerState: collect.DefaultPerState,
			Target:   collect.DefaultPerState,
			Delay:    collect.DefaultDelay.String(),
			Timeout:  "10s",
		},
		Hub: hubSection{
			HuggingFaceDataset: hub.DefaultHFDataset,
			KaggleDataset:      hub.DefaultKaggleDataset,
		},
		Finetune: tuneSection{
			BaseModel:    finetune.DefaultBaseModel,
			PollInterval: finetune.DefaultPollInterval.String(),
		},
		Train: trainSection{
			Epochs:       train.DefaultEpochs,
			BatchSize:    train.DefaultBatchSize,
			LearningRate: train.DefaultLearningRate,
			Hidden:       train.DefaultHidden,
			Patience:     train.DefaultPatience,
			Seed:         train.DefaultSeed,
		},
		Server: serverSection{Addr: server.DefaultAddr},
	}
}

func setDefaults(v *viper.Viper, d configFile) {
	v.SetDefault(cfgKeyBackend, d.Backend)
	v.SetDefault(cfgKeyLogLevel, d.Log.Level)
	v.SetDefault(cfgKeyLogFormat, d.Log.Format)
	v.SetDefault(cfgKeyPerState, d.Collect.PerState)
	v.SetDefault(cfgKeyTarget, d.Collect.Target)
	v.SetDefault(cfgKeyDelay, d.Collect.Delay)
	v.SetDefault(cfgKeyTimeout, d.Collect.Timeout)
	v.SetDefault(cfgKeyHFDataset, d.Hub.HuggingFaceDataset)
	v.SetDefault(cfgKeyKaggleDataset, d.Hub.KaggleDataset)
	v.SetDefault(cfgKeyBaseModel, d.Finetune.BaseModel)
	v.SetDefault(cfgKeyPollInterval, d.Finetune.PollInterval)
	v.SetDefault(cfgKeyTrainEpochs, d.Train.Epochs)
	v.SetDefault(cfgKeyTrainBatch, d.Train.BatchSize)
	v.SetDefault(cfgKeyTrainLR, d.Train.LearningRate)
	v.SetDefault(cfgKeyTrainHidden, d.Train.Hidden)
	v.SetDefault(cfgKeyTrainPatience, d.Train.Patience)
	v.SetDefault(cfgKeyTrainSeed, d.Train.Seed)
	v.SetDefault(cfgKeyServerAddr, d.Server.Addr)
}

// loadConfig reads config.yaml from configDir using viper. It creates the
// directory and a default config.yaml on first run.
func loadConfig(configDir string) (*viper.Viper, error) {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure config dir: %w", err)
	}
	if _, err := writeConfigIfMissing(filepath.Join(configDir, configFileExt), defaultConfig()); err != nil {
		return nil, fmt.Errorf("ensure default config: %w", err)
	}

	v := viper.New()
	setDefaults(v, defaultConfig())
	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)
	v.SetEnvPrefix(envPrefix)
	for _, key := range envBound {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}
	v.SetEnvKeyReplacer(envKeyReplacer)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return v, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	return v, nil
}

// writeConfigIfMissing marshals cfg to path unless the file already exists.
// It reports whether a file was written.
func writeConfigIfMissing(path string, cfg configFile) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("stat config file: %w", err)
	}

	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return false, fmt.Errorf("marshal config: %w", err)
	}
	header := []byte("# freshset configuration\n")
	return true, os.WriteFile(path, append(header, data...), 0o644)
}
