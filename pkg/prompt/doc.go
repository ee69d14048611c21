// Package prompt implements the interactive questions of elementstates on
// top of terminal forms.
package prompt
