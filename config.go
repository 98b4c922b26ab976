package corec

import "fmt"

// Config is a flat, typed key-value store threaded through every
// compile (spec §9 "Singleton process-wide flags / global state...
// Replace with an explicit CompileOptions struct threaded through the
// Compiler"). It keeps the teacher's map-of-typed-values design
// (config.go's Config/cfgVal) rather than a struct-of-flags, since the
// same store has to hold loader, resolver and compiler settings that
// no single package owns; compiler.CompileOptions (see options.go) is
// the typed, validated view over it that the worklist compiler
// actually consumes.
type Config map[string]*cfgVal

// NewConfig creates a configuration object primed with every default
// value the loader, resolver and compiler expect to find set.
func NewConfig() *Config {
	m := make(Config)
	m.SetBool("compiler.optimize", true)
	m.SetBool("compiler.emit_session", true)
	m.SetBool("resolver.strict_const", true)
	m.SetString("loader.core_library_uri", "dart:core")
	m.SetString("loader.system_library_uri", "dart:_internal")
	return &m
}

type cfgValType int

const (
	cfgValTypeUndefined cfgValType = iota
	cfgValTypeBool
	cfgValTypeInt
	cfgValTypeString
)

func (vt cfgValType) String() string {
	return map[cfgValType]string{
		cfgValTypeUndefined: "undefined",
		cfgValTypeBool:      "bool",
		cfgValTypeInt:       "int",
		cfgValTypeString:    "string",
	}[vt]
}

type cfgVal struct {
	typ      cfgValType
	asBool   bool
	asInt    int
	asString string
}

func (v *cfgVal) assignType(vt cfgValType) {
	if v.typ != vt && v.typ != cfgValTypeUndefined {
		panic(fmt.Sprintf("corec: can't assign `%s` to type `%s`", vt, v.typ))
	}
	v.typ = vt
}

func (v *cfgVal) checkType(vt cfgValType) {
	if v.typ != vt {
		panic(fmt.Sprintf("corec: can't retrieve `%s` from `%s` variable", vt, v.typ))
	}
}

// SetBool sets a boolean-valued setting at path.
func (c *Config) SetBool(path string, v bool) {
	(*c)[path] = &cfgVal{}
	(*c)[path].assignType(cfgValTypeBool)
	(*c)[path].asBool = v
}

// SetInt sets an int-valued setting at path.
func (c *Config) SetInt(path string, v int) {
	(*c)[path] = &cfgVal{}
	(*c)[path].assignType(cfgValTypeInt)
	(*c)[path].asInt = v
}

// SetString sets a string-valued setting at path.
func (c *Config) SetString(path string, v string) {
	(*c)[path] = &cfgVal{}
	(*c)[path].assignType(cfgValTypeString)
	(*c)[path].asString = v
}

// GetBool returns the boolean-valued setting at path, panicking if
// path is unset or holds a different type.
func (c *Config) GetBool(path string) bool {
	if val, ok := (*c)[path]; ok {
		val.checkType(cfgValTypeBool)
		return val.asBool
	}
	panic(fmt.Sprintf("corec: bool setting `%s` does not exist", path))
}

// GetInt returns the int-valued setting at path, panicking if path is
// unset or holds a different type.
func (c *Config) GetInt(path string) int {
	if val, ok := (*c)[path]; ok {
		val.checkType(cfgValTypeInt)
		return val.asInt
	}
	panic(fmt.Sprintf("corec: int setting `%s` does not exist", path))
}

// GetString returns the string-valued setting at path, panicking if
// path is unset or holds a different type.
func (c *Config) GetString(path string) string {
	if val, ok := (*c)[path]; ok {
		val.checkType(cfgValTypeString)
		return val.asString
	}
	panic(fmt.Sprintf("corec: string setting `%s` does not exist", path))
}
