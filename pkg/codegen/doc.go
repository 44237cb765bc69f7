// Package codegen generates source files from templates that are themselves
// valid source code.
//
// Directives live inside comments, so a template keeps compiling and
// highlighting in its host language:
//
//	/*= if $lang$ = java =*/
//	import java.util.List;
//	/*= end =*/
//	public class $Name$ {
//	    //= placeholder $body$
//	}
//
// Four marker families are recognized. "/*= ... =*/" and "//= ... [=//]" carry
// directives, "/*~ ... ~*/" and "//~ ... [~//]" carry template-only comments
// that are dropped from the output. Predefined directives are if, else, import,
// placeholder, assume, assert, with, remove and EOT. Any other word names a
// custom block, closed only by "<name>-end". Plain "end" closes the if and
// with blocks and an anonymous "start" block.
//
// A template is compiled once into a tree of blocks (see Compiler) and rendered
// any number of times against Variables by an Engine. Rendering never mutates
// the compiled tree, so a single Engine can serve concurrent callers.
package codegen
