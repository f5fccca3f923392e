package collect

import (
	"fmt"
	"strings"

	"github.com/mesh-intelligence/freshset/pkg/types"
)

// describedCharacteristics holds the long-form descriptions used for
// generated samples.
var describedCharacteristics = map[string]map[string]types.Characteristics{
	types.StateFresh: {
		"apple": {
			Color: "Vibrant red with natural shine", Texture: "Firm and crisp",
			Blemishes: "None visible", Ripeness: "Perfect eating stage",
			Smell: "Fresh, sweet aroma", Firmness: "Very firm",
		},
		"banana": {
			Color: "Bright yellow with green tips", Texture: "Firm but yielding",
			Blemishes: "None visible", Ripeness: "Perfect ripeness",
			Smell: "Sweet, tropical aroma", Firmness: "Firm with slight give",
		},
		"tomato": {
			Color: "Deep red, uniform", Texture: "Smooth, taut skin",
			Blemishes: "None visible", Ripeness: "Perfectly ripe",
			Smell: "Fresh, earthy aroma", Firmness: "Firm with slight give",
		},
	},
	types.StateRotten: {
		"apple": {
			Color: "Brown spots, dull appearance", Texture: "Soft, wrinkled skin",
			Blemishes: "Multiple dark spots", Ripeness: "Overripe, spoiled",
			Smell: "Sour, fermented odor", Firmness: "Very soft, mushy",
		},
		"banana": {
			Color: "Brown/black with spots", Texture: "Very soft, leaking",
			Blemishes: "Large brown areas", Ripeness: "Severely overripe",
			Smell: "Strong, alcoholic odor", Firmness: "Mushy, collapsing",
		},
		"tomato": {
			Color: "Dark patches, moldy areas", Texture: "Wrinkled, soft spots",
			Blemishes: "Mold growth visible", Ripeness: "Spoiled, inedible",
			Smell: "Sour, putrid odor", Firmness: "Soft, leaking juice",
		},
	},
}

var genericDescribed = map[string]types.Characteristics{
	types.StateFresh: {
		Color: "Natural, vibrant color", Texture: "Firm and proper",
		Blemishes: "None or minimal", Ripeness: "Optimal freshness",
		Smell: "Fresh, natural aroma", Firmness: "Proper firmness",
	},
	types.StateRotten: {
		Color: "Discolored, dull", Texture: "Soft, deteriorated",
		Blemishes: "Visible spoilage", Ripeness: "Spoiled, inedible",
		Smell: "Off, unpleasant odor", Firmness: "Too soft, mushy",
	},
}

// observed is the short description attached to downloaded samples, with
// the quality indicator quoted in the details text.
type observed struct {
	types.Characteristics
	Indicator string
}

var observedCharacteristics = map[string]map[string]observed{
	types.StateFresh: {
		"apple": {types.Characteristics{Color: "Bright red with natural shine", Texture: "Firm and crisp skin",
			Blemishes: "None visible", Ripeness: "Perfect eating stage"}, "Glossy skin"},
		"banana": {types.Characteristics{Color: "Golden yellow", Texture: "Smooth peel with slight firmness",
			Blemishes: "None or minimal brown spots", Ripeness: "Perfect ripeness for eating"}, "Uniform yellow color"},
		"orange": {types.Characteristics{Color: "Vibrant orange", Texture: "Smooth, tight skin",
			Blemishes: "None visible", Ripeness: "Juicy and ready to eat"}, "Bright color"},
		"tomato": {types.Characteristics{Color: "Deep red", Texture: "Smooth, taut skin",
			Blemishes: "None visible", Ripeness: "Perfectly ripe"}, "Even red color"},
	},
	types.StateRotten: {
		"apple": {types.Characteristics{Color: "Brown spots and dull appearance", Texture: "Soft, wrinkled skin",
			Blemishes: "Multiple dark spots and discoloration", Ripeness: "Overripe and spoiled"}, "Dark spots"},
		"banana": {types.Characteristics{Color: "Brown to black with spots", Texture: "Very soft, possibly leaking",
			Blemishes: "Large brown areas and soft spots", Ripeness: "Severely overripe"}, "Extensive browning"},
		"orange": {types.Characteristics{Color: "Dull with dark patches", Texture: "Soft spots and wrinkled skin",
			Blemishes: "Mold growth and discoloration", Ripeness: "Spoiled and inedible"}, "Mold presence"},
		"tomato": {types.Characteristics{Color: "Dark patches with possible mold", Texture: "Soft, leaking areas",
			Blemishes: "Visible mold and rot", Ripeness: "Spoiled beyond consumption"}, "Mold growth"},
	},
}

var genericObserved = map[string]observed{
	types.StateFresh: {types.Characteristics{Color: "Natural color", Texture: "Proper texture",
		Blemishes: "None or minimal", Ripeness: "Good condition"}, "Good quality"},
	types.StateRotten: {types.Characteristics{Color: "Discolored", Texture: "Deteriorated texture",
		Blemishes: "Visible spoilage", Ripeness: "Spoiled condition"}, "Poor quality"},
}

// DescribedCharacteristics returns the generated-sample description for a
// produce and state, falling back to the generic one.
func DescribedCharacteristics(produce, state string) types.Characteristics {
	if c, ok := describedCharacteristics[state][produce]; ok {
		return c
	}
	return genericDescribed[state]
}

// observedFor returns the downloaded-sample description for a produce and
// state, falling back to the generic one.
func observedFor(produce, state string) observed {
	if o, ok := observedCharacteristics[state][produce]; ok {
		return o
	}
	return genericObserved[state]
}

// generatedDetails is the details sentence of a generated sample.
func generatedDetails(produce, state string, c types.Characteristics) string {
	return fmt.Sprintf("This %s appears to be %s. %s with %s.",
		produce, state, c.Color, strings.ToLower(c.Texture))
}

// observedDetails is the details sentence of a downloaded sample.
func observedDetails(produce, state string, o observed) string {
	return fmt.Sprintf("This %s appears to be %s. Analysis shows %s with %s. %s.",
		strings.ReplaceAll(produce, "_", " "), state,
		strings.ToLower(o.Color), strings.ToLower(o.Texture), o.Indicator)
}
