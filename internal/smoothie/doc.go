// Package smoothie discovers a local smoothie-rs installation: the executable,
// the default recipe, and the recipe files available for selection.
package smoothie
