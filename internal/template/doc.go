// Package template compiles pages written in the tag language into Go
// text/template source and renders the result.
//
// A page goes through fragment resolution ({{block=name}} inclusion),
// tokenizing of {{type args}} and {{end type}} tags, tree construction over
// the capturing tags (foreach, range, if), code generation through a Registry
// of generators, closing-tag substitution and minification. The Engine caches
// the outcome as a cache.Artifact keyed by page name; a Renderer executes an
// artifact against a map of bindings.
//
// Bindings are addressed with the $ marker. $name is the binding called name
// unless an enclosing foreach or range declared a loop variable of that name.
// Dotted paths in text tags call accessor methods: $user.name.first becomes
// $.user.GetName.GetFirst.
package template
