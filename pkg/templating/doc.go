/*
Package templating renders text/template files whose functions generate
text from stored markov chains.

Chains are loaded by name on first use and cached until the next Refresh:

	{{ sentence "fish" }}
	{{ reply "fish" "blue fish" }}
	{{ range replies "fish" 3 "red" }}- {{ . }}
	{{ end }}
	{{ paragraphs "fish" 2 1 4 }}

Templates are the *.tmpl files of the configured directory; any of them can
be executed by name or used as a partial from an ad hoc template string.
*/
package templating
