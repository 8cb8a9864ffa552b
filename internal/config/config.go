package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Collection is the top-level finwrap configuration: an ordered list of accounts.
type Collection struct {
	Accounts []Account `yaml:"accounts"`
}

// Account describes one transaction source and how its columns map onto the
// canonical schema.
type Account struct {
	FilePath                    Paths     `yaml:"file_path"`
	Name                        string    `yaml:"name"`
	DateCol                     string    `yaml:"date_col"`
	TransactionCol              string    `yaml:"transaction_col"`
	AmountCol                   string    `yaml:"amount_col"`
	DateColFormat               string    `yaml:"date_col_format,omitempty"` // strftime, e.g. "%d/%m/%Y"
	Currency                    *Currency `yaml:"currency,omitempty"`
	FeesCol                     string    `yaml:"fees_col,omitempty"`
	TransactionColCleaningRegex string    `yaml:"transaction_col_cleaning_regex,omitempty"`
}

// Currency configures conversion of an account's amounts.
type Currency struct {
	CurrencyCol string   `yaml:"currency_col"`
	ConvertTo   string   `yaml:"convert_to"`
	DefaultRate *float64 `yaml:"default_rate,omitempty"`
	Strategy    string   `yaml:"strategy,omitempty"` // "latest" (default) or "dynamic"
}

// Paths is one or more source file paths. In YAML it is either a scalar or a
// sequence; a single path is written back as a scalar. Paths are written
// absolute.
type Paths []string

// UnmarshalYAML accepts a scalar or a sequence of scalars.
func (p *Paths) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var s string
		if err := node.Decode(&s); err != nil {
			return err
		}
		*p = Paths{s}
		return nil
	case yaml.SequenceNode:
		var list []string
		if err := node.Decode(&list); err != nil {
			return err
		}
		*p = list
		return nil
	}
	return fmt.Errorf("line %d: file_path must be a path or a list of paths", node.Line)
}

// MarshalYAML resolves every path to an absolute path.
func (p Paths) MarshalYAML() (any, error) {
	abs := make([]string, len(p))
	for i, s := range p {
		a, err := filepath.Abs(s)
		if err != nil {
			return nil, fmt.Errorf("resolving %s: %w", s, err)
		}
		abs[i] = a
	}
	if len(abs) == 1 {
		return abs[0], nil
	}
	return abs, nil
}

// Validate checks that required fields are set.
func (a *Account) Validate() error {
	var errs []error
	if a.Name == "" {
		errs = append(errs, errors.New("name is required"))
	}
	if len(a.FilePath) == 0 {
		errs = append(errs, errors.New("file_path is required"))
	}
	for _, f := range []struct{ name, value string }{
		{"date_col", a.DateCol},
		{"transaction_col", a.TransactionCol},
		{"amount_col", a.AmountCol},
	} {
		if f.value == "" {
			errs = append(errs, fmt.Errorf("%s is required", f.name))
		}
	}
	if c := a.Currency; c != nil {
		if c.CurrencyCol == "" {
			errs = append(errs, errors.New("currency.currency_col is required"))
		}
		if c.ConvertTo == "" {
			errs = append(errs, errors.New("currency.convert_to is required"))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("account %q: %w", a.Name, err)
	}
	return nil
}

// ParseError reports a configuration file that is not valid YAML or does not
// match the expected shape.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string { return fmt.Sprintf("parsing config %s: %v", e.Path, e.Err) }
func (e *ParseError) Unwrap() error { return e.Err }

// LoadAccount reads a single-account configuration file.
func LoadAccount(path string) (*Account, error) {
	var a Account
	if err := load(path, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// SaveAccount writes a single-account configuration file.
func SaveAccount(path string, a *Account) error {
	return save(path, a)
}

// LoadCollection reads a collection configuration file.
func LoadCollection(path string) (*Collection, error) {
	var c Collection
	if err := load(path, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// Load reads either a collection or a single-account configuration file. A
// document without an accounts key is read as one account and returned as a
// one-account collection.
func Load(path string) (*Collection, error) {
	var doc map[string]yaml.Node
	if err := load(path, &doc); err != nil {
		return nil, err
	}
	if _, ok := doc["accounts"]; ok {
		return LoadCollection(path)
	}
	a, err := LoadAccount(path)
	if err != nil {
		return nil, err
	}
	return &Collection{Accounts: []Account{*a}}, nil
}

// SaveCollection writes a collection configuration file.
func SaveCollection(path string, c *Collection) error {
	return save(path, c)
}

func load(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, v); err != nil {
		return &ParseError{Path: path, Err: err}
	}
	return nil
}

func save(path string, v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}
