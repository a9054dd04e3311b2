package mc

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"unicode/utf8"
)

// sectionSign introduces a legacy formatting code.
const sectionSign = "§"

// MaxMotdDepth bounds the nesting of chat components in a description.
const MaxMotdDepth = 32

var (
	ErrMotdTooDeep  = errors.New("motd components nested too deeply")
	ErrMotdBadValue = errors.New("motd must be a string or a chat component object")
)

// StyledSegment is a run of motd text with one resolved style. Color holds
// either a named color or a #rrggbb literal, exactly as the server sent it.
type StyledSegment struct {
	Text          string `json:"text"`
	Color         string `json:"color,omitempty"`
	Bold          bool   `json:"bold,omitempty"`
	Italic        bool   `json:"italic,omitempty"`
	Underlined    bool   `json:"underlined,omitempty"`
	Strikethrough bool   `json:"strikethrough,omitempty"`
	Obfuscated    bool   `json:"obfuscated,omitempty"`
}

// legacyColorNames maps formatting code characters to chat color names. The
// g through u entries are Bedrock additions.
var legacyColorNames = map[rune]string{
	'0': "black",
	'1': "dark_blue",
	'2': "dark_green",
	'3': "dark_aqua",
	'4': "dark_red",
	'5': "dark_purple",
	'6': "gold",
	'7': "gray",
	'8': "dark_gray",
	'9': "blue",
	'a': "green",
	'b': "aqua",
	'c': "red",
	'd': "light_purple",
	'e': "yellow",
	'f': "white",
	'g': "minecoin_gold",
	'h': "material_quartz",
	'i': "material_iron",
	'j': "material_netherite",
	'p': "material_gold",
	'q': "material_emerald",
	's': "material_diamond",
	't': "material_lapis",
	'u': "material_amethyst",
}

// DecodeLegacyMotd splits a section-sign formatted motd into styled
// segments. Unknown codes stay in the text as written, only a trailing
// bare section sign is dropped.
func DecodeLegacyMotd(text string) []StyledSegment {
	return decodeLegacyMotd(text, StyledSegment{})
}

func decodeLegacyMotd(text string, base StyledSegment) []StyledSegment {
	base.Text = ""
	var segments []StyledSegment
	current := base
	var run strings.Builder

	flush := func() {
		if run.Len() == 0 {
			return
		}
		segment := current
		segment.Text = run.String()
		segments = append(segments, segment)
		run.Reset()
	}

	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		if r != '§' {
			run.WriteRune(r)
			i += size
			continue
		}

		if i+size >= len(text) {
			// lone section sign at the end
			break
		}
		code, codeSize := utf8.DecodeRuneInString(text[i+size:])
		i += size + codeSize

		folded := code
		if folded >= 'A' && folded <= 'Z' {
			folded += 'a' - 'A'
		}

		if color, ok := legacyColorNames[folded]; ok {
			flush()
			// a color code also resets every style flag
			current = StyledSegment{Color: color}
			continue
		}

		switch folded {
		case 'k':
			flush()
			current.Obfuscated = true
		case 'l':
			flush()
			current.Bold = true
		case 'm':
			flush()
			current.Strikethrough = true
		case 'n':
			flush()
			current.Underlined = true
		case 'o':
			flush()
			current.Italic = true
		case 'r':
			flush()
			current = base
		default:
			// unknown codes are kept as literal text
			run.WriteRune('§')
			run.WriteRune(code)
		}
	}

	flush()
	return segments
}

// DecodeMotd decodes a modern status description. Servers send either a bare
// JSON string, which may carry legacy codes, or a chat component tree whose
// children inherit the styles of their ancestors.
func DecodeMotd(raw json.RawMessage) ([]StyledSegment, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	if trimmed[0] != '"' && trimmed[0] != '{' && trimmed[0] != '[' {
		return nil, ErrMotdBadValue
	}

	var segments []StyledSegment
	if err := walkComponent(trimmed, StyledSegment{}, 0, &segments); err != nil {
		return nil, err
	}
	return segments, nil
}

// PlainMotd concatenates segment text with all styling stripped.
func PlainMotd(segments []StyledSegment) string {
	var sb strings.Builder
	for _, segment := range segments {
		sb.WriteString(segment.Text)
	}
	return sb.String()
}

// chatComponent is the subset of the chat format a status description uses.
// Style flags are pointers so an absent flag can inherit while an explicit
// false overrides.
type chatComponent struct {
	Text          string            `json:"text"`
	Translate     string            `json:"translate"`
	Color         string            `json:"color"`
	Bold          *bool             `json:"bold"`
	Italic        *bool             `json:"italic"`
	Underlined    *bool             `json:"underlined"`
	Strikethrough *bool             `json:"strikethrough"`
	Obfuscated    *bool             `json:"obfuscated"`
	Extra         []json.RawMessage `json:"extra"`
}

func walkComponent(raw json.RawMessage, inherited StyledSegment, depth int, out *[]StyledSegment) error {
	if depth > MaxMotdDepth {
		return ErrMotdTooDeep
	}

	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil
	}

	switch raw[0] {
	case '"':
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return err
		}
		*out = append(*out, decodeLegacyMotd(text, inherited)...)
		return nil

	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return err
		}
		for _, item := range items {
			if err := walkComponent(item, inherited, depth+1, out); err != nil {
				return err
			}
		}
		return nil

	case '{':
		var component chatComponent
		if err := json.Unmarshal(raw, &component); err != nil {
			return err
		}

		style := inherited
		style.Text = ""
		if component.Color != "" {
			style.Color = component.Color
		}
		if component.Bold != nil {
			style.Bold = *component.Bold
		}
		if component.Italic != nil {
			style.Italic = *component.Italic
		}
		if component.Underlined != nil {
			style.Underlined = *component.Underlined
		}
		if component.Strikethrough != nil {
			style.Strikethrough = *component.Strikethrough
		}
		if component.Obfuscated != nil {
			style.Obfuscated = *component.Obfuscated
		}

		if component.Text != "" {
			*out = append(*out, decodeLegacyMotd(component.Text, style)...)
		} else if component.Translate != "" {
			segment := style
			segment.Text = component.Translate
			*out = append(*out, segment)
		}

		for _, extra := range component.Extra {
			if err := walkComponent(extra, style, depth+1, out); err != nil {
				return err
			}
		}
		return nil

	case 'n': // null
		return nil

	default:
		// numbers and booleans render as their literal text
		segment := inherited
		segment.Text = string(raw)
		*out = append(*out, segment)
		return nil
	}
}
