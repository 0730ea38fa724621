package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

// OptionType defines the type of value an option expects
type OptionType int

const (
	OptionTypeBool OptionType = iota
	OptionTypeString
	OptionTypeInt
)

// OptionDef defines a command-line option
type OptionDef struct {
	Long        string     // Long option name (without --)
	Short       string     // Short option name (without -)
	Type        OptionType // Type of value expected
	Description string     // Help description
	Default     string     // Default value
}

// ParsedOptions holds the parsed command-line options
type ParsedOptions struct {
	values        map[string]string
	args          []string
	defs          map[string]*OptionDef
	order         []string          // Long names in definition order, for usage output
	shortMap      map[string]string // Maps short options to long options
	explicitlySet map[string]bool   // Tracks which options were explicitly set
}

// NewParsedOptions creates a new options parser
func NewParsedOptions() *ParsedOptions {
	return &ParsedOptions{
		values:        make(map[string]string),
		args:          []string{},
		defs:          make(map[string]*OptionDef),
		shortMap:      make(map[string]string),
		explicitlySet: make(map[string]bool),
	}
}

// DefineOption defines a command-line option
func (p *ParsedOptions) DefineOption(long, short string, optType OptionType, defaultValue, description string) {
	def := &OptionDef{
		Long:        long,
		Short:       short,
		Type:        optType,
		Description: description,
		Default:     defaultValue,
	}
	if _, exists := p.defs[long]; !exists {
		p.order = append(p.order, long)
	}
	p.defs[long] = def
	if short != "" {
		p.shortMap[short] = long
	}

	if defaultValue != "" {
		p.values[long] = defaultValue
	}
}

// Parse parses command-line arguments. A bare "--" ends option processing.
func (p *ParsedOptions) Parse(args []string) error {
	consumed := make([]bool, len(args))

	for i := 0; i < len(args); i++ {
		if consumed[i] {
			continue
		}

		arg := args[i]

		if arg == "--" {
			consumed[i] = true
			for j := i + 1; j < len(args); j++ {
				if !consumed[j] {
					consumed[j] = true
					p.args = append(p.args, args[j])
				}
			}
			break
		} else if strings.HasPrefix(arg, "--") {
			consumed[i] = true
			if err := p.parseLongOption(arg); err != nil {
				return err
			}
		} else if strings.HasPrefix(arg, "-") && len(arg) > 1 {
			consumed[i] = true
			if err := p.parseShortOptions(arg, args, i, consumed); err != nil {
				return err
			}
		}
	}

	// Positional arguments keep their original order ahead of anything after "--"
	var positional []string
	for i := 0; i < len(args); i++ {
		if !consumed[i] {
			positional = append(positional, args[i])
		}
	}
	p.args = append(positional, p.args...)

	return nil
}

// parseLongOption parses a long option (--option or --option=value)
func (p *ParsedOptions) parseLongOption(arg string) error {
	optName := strings.TrimPrefix(arg, "--")
	var optValue string
	hasValue := false

	if equalPos := strings.Index(optName, "="); equalPos != -1 {
		optValue = optName[equalPos+1:]
		optName = optName[:equalPos]
		hasValue = true
	}

	def, exists := p.defs[optName]
	if !exists {
		return fmt.Errorf("unknown option: --%s", optName)
	}

	switch def.Type {
	case OptionTypeBool:
		if hasValue {
			switch optValue {
			case "true", "1":
				p.values[optName] = "true"
			case "false", "0":
				p.values[optName] = "false"
			default:
				return fmt.Errorf("invalid boolean value for --%s: %s", optName, optValue)
			}
		} else {
			p.values[optName] = "true"
		}
		p.explicitlySet[optName] = true

	case OptionTypeString, OptionTypeInt:
		if !hasValue || optValue == "" {
			return fmt.Errorf("option --%s requires a value (use --%s=value)", optName, optName)
		}
		if def.Type == OptionTypeInt {
			if _, err := strconv.Atoi(optValue); err != nil {
				return fmt.Errorf("invalid integer value for --%s: %s", optName, optValue)
			}
		}
		p.values[optName] = optValue
		p.explicitlySet[optName] = true
	}

	return nil
}

// parseShortOptions parses short option(s) (-o or -abc). Repeating an integer
// option sets it to the repetition count (-vvv is verbose level 3).
func (p *ParsedOptions) parseShortOptions(arg string, args []string, i int, consumed []bool) error {
	shortOpts := strings.TrimPrefix(arg, "-")

	// Count occurrences, remembering first-seen order so value consumption is stable
	optCounts := make(map[string]int)
	var seen []string
	for _, r := range shortOpts {
		short := string(r)
		if _, exists := p.shortMap[short]; !exists {
			return fmt.Errorf("unknown option: -%s", short)
		}
		if optCounts[short] == 0 {
			seen = append(seen, short)
		}
		optCounts[short]++
	}

	for _, short := range seen {
		count := optCounts[short]
		longOpt := p.shortMap[short]
		def := p.defs[longOpt]

		switch def.Type {
		case OptionTypeBool:
			p.values[longOpt] = "true"

		case OptionTypeInt:
			if count > 1 {
				p.values[longOpt] = strconv.Itoa(count)
			} else if nextArg := p.findNextAvailableIntArg(args, i, consumed); nextArg != "" {
				p.values[longOpt] = nextArg
			} else {
				p.values[longOpt] = "1"
			}

		case OptionTypeString:
			nextArg := p.findNextAvailableArg(args, i, consumed)
			if nextArg == "" {
				return fmt.Errorf("option -%s requires a value", short)
			}
			p.values[longOpt] = nextArg
		}
		p.explicitlySet[longOpt] = true
	}

	return nil
}

// findNextAvailableIntArg finds the next available integer argument and marks it consumed
func (p *ParsedOptions) findNextAvailableIntArg(args []string, startIdx int, consumed []bool) string {
	for i := startIdx + 1; i < len(args); i++ {
		if !consumed[i] && !strings.HasPrefix(args[i], "-") {
			if _, err := strconv.Atoi(args[i]); err == nil {
				consumed[i] = true
				return args[i]
			}
			return ""
		}
	}
	return ""
}

// findNextAvailableArg finds the next available argument and marks it consumed
func (p *ParsedOptions) findNextAvailableArg(args []string, startIdx int, consumed []bool) string {
	for i := startIdx + 1; i < len(args); i++ {
		if args[i] == "--" {
			return ""
		}
		if !consumed[i] && !strings.HasPrefix(args[i], "-") {
			consumed[i] = true
			return args[i]
		}
	}
	return ""
}

// GetString returns a string option value
func (p *ParsedOptions) GetString(option string) string {
	return p.values[option]
}

// GetInt returns an integer option value
func (p *ParsedOptions) GetInt(option string) int {
	if val, exists := p.values[option]; exists {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return 0
}

// GetBool returns a boolean option value
func (p *ParsedOptions) GetBool(option string) bool {
	if val, exists := p.values[option]; exists {
		return val == "true"
	}
	return false
}

// IsSet returns true if an option was explicitly set
func (p *ParsedOptions) IsSet(option string) bool {
	return p.explicitlySet[option]
}

// GetArgs returns non-option arguments
func (p *ParsedOptions) GetArgs() []string {
	return p.args
}

// WriteUsage lists the defined options in definition order
func (p *ParsedOptions) WriteUsage(w io.Writer) {
	for _, long := range p.order {
		def := p.defs[long]

		shortOpt := "    "
		if def.Short != "" {
			shortOpt = fmt.Sprintf("-%s, ", def.Short)
		}

		var valueDesc string
		switch def.Type {
		case OptionTypeString:
			valueDesc = "=VALUE"
		case OptionTypeInt:
			valueDesc = "=N"
		}

		flag := "--" + def.Long + valueDesc
		fmt.Fprintf(w, "  %s%-24s %s", shortOpt, flag, def.Description)
		if def.Default != "" && def.Type != OptionTypeBool {
			fmt.Fprintf(w, " (default: %s)", def.Default)
		}
		fmt.Fprintln(w)
	}
}
