package finetune

import (
	"os"
	"strings"
)

// EnvModelKey is the variable holding the fine-tuned model id.
const EnvModelKey = "OPENAI_FINETUNED_MODEL_ID"

// UpdateEnvFile sets EnvModelKey=modelID in path, replacing an existing
// assignment or appending a new line. Other lines are kept as they are.
func UpdateEnvFile(path, modelID string) error {
	content, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	line := EnvModelKey + "=" + modelID

	lines := strings.Split(string(content), "\n")
	replaced := false
	for i, l := range lines {
		if strings.HasPrefix(l, EnvModelKey+"=") {
			lines[i] = line
			replaced = true
			break
		}
	}
	var out string
	if replaced {
		out = strings.Join(lines, "\n")
	} else {
		out = string(content)
		if out != "" && !strings.HasSuffix(out, "\n") {
			out += "\n"
		}
		out += line + "\n"
	}
	return os.WriteFile(path, []byte(out), 0o600)
}
