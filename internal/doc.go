// Package internal contains the implementation packages of the tplc compiler.
//
// # Package Organization
//
// The internal packages are organized by functional domain:
//
//   - template: tokenizer, tree builder, fragment resolver, tag generators,
//     code generation and the compile engine with its renderer and views
//   - source: reads pages and fragments from the templates directory
//   - cache: artifact stores (disk, memory, tiered) and namespace management
//   - assets: the JavaScript bundle referenced by the js tag
//   - config: configuration loading and validation through viper
//   - errors: coded compile and runtime errors with source locations
//   - logging: structured logging on log/slog
//   - watcher: fsnotify monitoring with debouncing and artifact invalidation
//   - middleware: the HTTP middleware stack
//   - server: development server with live reload
//   - services: command-level operations shared by the CLI
//   - version: build information
//
// # Data Flow
//
// A page name enters the engine, which checks the artifact store, reads the
// markup from the source, inlines fragments, tokenizes, builds the tag tree,
// runs each tag through its generator and stores the validated result. The
// renderer parses the artifact once per compilation and executes it with the
// view's bindings. The watcher maps changed files back to pages through each
// artifact's dependency list and drops the stale ones.
package internal
