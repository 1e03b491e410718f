package structured

import "fmt"

// Bundle merges a main model and its sub-models into one self-contained
// schema: a copy of the main model with every other model under $defs.
func Bundle(mainName string, models map[string]*JSONSchema) (*JSONSchema, error) {
	main, ok := models[mainName]
	if !ok || main == nil {
		return nil, fmt.Errorf("main model %q not found", mainName)
	}
	root := main.Clone()
	root.Defs = nil
	for _, name := range sortedDefNames(models) {
		if name != mainName {
			root.AddDef(name, models[name].Clone())
		}
	}
	return root, nil
}
