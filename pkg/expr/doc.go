/*
Package expr implements the small attribute language carried by template
directives.

An attribute string is a whitespace separated list of operations. Each
operation is a term, optionally prefixed by a negation, optionally followed by
infix operators and further terms:

	$lang$ = java
	!$skip$
	$a$ && ($b$ || $c$)
	file=`path/to/File.java` block=header

Terms are identifiers (`[_$a-zA-Z][_$a-zA-Z0-9]*`), numerics, and quoted
literals using backticks, single or double quotes. Identifiers resolve through a
Resolver at evaluation time and fall back to their own text when unbound, so
`java` above is simply the string "java".

Parse errors are reported as *SyntaxError values and are always fatal to the
caller; there is no partial result.
*/
package expr
