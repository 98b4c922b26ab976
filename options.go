package corec

import "github.com/corelang/corec/internal/compiler"

// CompileOptionsFromConfig builds the typed compiler.CompileOptions
// view the worklist compiler consumes from a raw Config (spec §9:
// "CompileOptions struct threaded through the Compiler").
func CompileOptionsFromConfig(cfg *Config) compiler.CompileOptions {
	return compiler.CompileOptions{
		Optimize:         cfg.GetBool("compiler.optimize"),
		EmitSession:      cfg.GetBool("compiler.emit_session"),
		StrictConst:      cfg.GetBool("resolver.strict_const"),
		CoreLibraryURI:   cfg.GetString("loader.core_library_uri"),
		SystemLibraryURI: cfg.GetString("loader.system_library_uri"),
	}
}
