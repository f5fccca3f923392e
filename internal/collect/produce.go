package collect

// Produce categories.
const (
	CategoryFruit     = "fruits"
	CategoryVegetable = "vegetables"
)

// RegionGlobal is the region of produce without a specific origin.
const RegionGlobal = "Global"

// Produce describes one produce type in the collection catalog.
type Produce struct {
	Name     string
	Category string
	Region   string
}

// defaultProduceNames lists the global catalog in collection order.
var defaultProduceNames = []string{
	// common fruits
	"apple", "banana", "orange", "strawberry", "grape", "lemon", "lime", "kiwi",
	"pear", "peach", "plum", "cherry", "watermelon", "pineapple", "mango",
	"papaya", "avocado", "pomegranate",
	// asian fruits
	"lychee", "dragonfruit", "durian", "jackfruit", "rambutan", "persimmon", "guava",
	// mediterranean fruits and berries
	"fig", "apricot", "nectarine", "blackberry", "raspberry", "blueberry",
	// tropical fruits
	"coconut", "passion_fruit", "star_fruit", "kiwano",
	// common vegetables
	"tomato", "cucumber", "carrot", "potato", "onion", "bell_pepper", "broccoli",
	"cauliflower", "lettuce", "spinach", "cabbage", "eggplant", "zucchini", "corn",
	"peas", "green_beans",
	// root vegetables
	"radish", "turnip", "beet", "sweet_potato", "ginger", "garlic",
	// asian vegetables
	"bok_choy", "napa_cabbage", "daikon", "lotus_root", "bamboo_shoots",
	// herbs and greens
	"basil", "cilantro", "parsley", "mint", "kale", "arugula",
}

// PriorityProduce is the short list used for real image collection.
var PriorityProduce = []string{
	"apple", "banana", "orange", "strawberry", "grape", "lemon",
	"tomato", "cucumber", "carrot", "potato", "onion", "bell_pepper",
	"broccoli", "lettuce", "avocado", "mango", "pineapple", "kiwi",
}

var fruits = map[string]bool{
	"apple": true, "banana": true, "orange": true, "strawberry": true, "grape": true,
	"lemon": true, "lime": true, "kiwi": true, "pear": true, "peach": true, "plum": true,
	"cherry": true, "watermelon": true, "pineapple": true, "mango": true, "papaya": true,
	"avocado": true, "pomegranate": true, "lychee": true, "dragonfruit": true,
	"durian": true, "jackfruit": true, "rambutan": true, "persimmon": true, "guava": true,
	"fig": true, "apricot": true, "nectarine": true, "blackberry": true, "raspberry": true,
	"blueberry": true, "coconut": true, "passion_fruit": true, "star_fruit": true,
	"kiwano": true,
}

var regions = map[string]string{
	"mango":        "South Asia",
	"pineapple":    "Central America",
	"papaya":       "Central America",
	"coconut":      "Southeast Asia",
	"durian":       "Southeast Asia",
	"jackfruit":    "South Asia",
	"dragonfruit":  "Southeast Asia",
	"fig":          "Mediterranean",
	"olive":        "Mediterranean",
	"pomegranate":  "Mediterranean",
	"apple":        "Temperate regions",
	"pear":         "Temperate regions",
	"cherry":       "Temperate regions",
	"peach":        "Temperate regions",
	"bok_choy":     "East Asia",
	"daikon":       "East Asia",
	"napa_cabbage": "East Asia",
	"potato":       "South America",
	"sweet_potato": "Central America",
	"carrot":       "Central Asia",
}

// Lookup returns the catalog entry for name. Unknown names are vegetables
// from the global region.
func Lookup(name string) Produce {
	p := Produce{Name: name, Category: CategoryVegetable, Region: RegionGlobal}
	if fruits[name] {
		p.Category = CategoryFruit
	}
	if r, ok := regions[name]; ok {
		p.Region = r
	}
	return p
}

// DefaultProduce returns the global produce catalog.
func DefaultProduce() []Produce {
	return LookupAll(defaultProduceNames)
}

// LookupAll resolves every name in order.
func LookupAll(names []string) []Produce {
	out := make([]Produce, 0, len(names))
	for _, n := range names {
		out = append(out, Lookup(n))
	}
	return out
}

// Names returns the produce names in order.
func Names(produce []Produce) []string {
	out := make([]string, len(produce))
	for i, p := range produce {
		out[i] = p.Name
	}
	return out
}

// Categories groups produce names by category, keeping catalog order.
func Categories(produce []Produce) map[string][]string {
	out := map[string][]string{CategoryFruit: {}, CategoryVegetable: {}}
	for _, p := range produce {
		out[p.Category] = append(out[p.Category], p.Name)
	}
	return out
}

// RegionalDistribution groups produce names by region, keeping catalog order.
func RegionalDistribution(produce []Produce) map[string][]string {
	out := make(map[string][]string)
	for _, p := range produce {
		out[p.Region] = append(out[p.Region], p.Name)
	}
	return out
}
