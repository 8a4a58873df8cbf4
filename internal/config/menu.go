package config

import (
	"fmt"

	mapset "github.com/deckarep/golang-set/v2"
	"gopkg.in/yaml.v3"
)

// Menu is a keyboard layout: rows of buttons.
type Menu [][]Button

// Button pairs a callback token with its caption. In YAML each button is a
// single-key mapping, e.g. `add_record: "Add record"`.
type Button struct {
	Token   string
	Caption string
}

func (b *Button) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode || len(node.Content) != 2 {
		return fmt.Errorf("line %d: menu button must be a single key mapping", node.Line)
	}
	if err := node.Content[0].Decode(&b.Token); err != nil {
		return err
	}
	return node.Content[1].Decode(&b.Caption)
}

// Tokens lists every callback token in the menu in layout order.
func (m Menu) Tokens() []string {
	var out []string
	for _, row := range m {
		for _, b := range row {
			out = append(out, b.Token)
		}
	}
	return out
}

// Unknown lists the menu tokens that are not in known, in layout order.
func (m Menu) Unknown(known mapset.Set[string]) []string {
	var out []string
	for _, tok := range m.Tokens() {
		if !known.Contains(tok) {
			out = append(out, tok)
		}
	}
	return out
}

// Caption returns the caption for token, if the menu has it.
func (m Menu) Caption(token string) (string, bool) {
	for _, row := range m {
		for _, b := range row {
			if b.Token == token {
				return b.Caption, true
			}
		}
	}
	return "", false
}
