package registry

// RegisterDefaults installs the whitelist for ML's three primitive-like
// container types. These are the attributes the generator is allowed to
// emit a method call for without the value ever passing through a
// registered bridge class.
func RegisterDefaults(r *Registry) {
	r.RegisterBuiltin("string", map[string]Entry{
		"length":     {Kind: Property, Description: "character count"},
		"upper":      {Kind: Method, Sanitizing: true, Description: "uppercased copy"},
		"lower":      {Kind: Method, Sanitizing: true, Description: "lowercased copy"},
		"trim":       {Kind: Method, Sanitizing: true, Description: "whitespace-trimmed copy"},
		"split":      {Kind: Method, Description: "split on separator"},
		"replace":    {Kind: Method, Description: "substring replacement"},
		"contains":   {Kind: Method, Sanitizing: true, Description: "substring test"},
		"startsWith": {Kind: Method, Sanitizing: true, Description: "prefix test"},
		"endsWith":   {Kind: Method, Sanitizing: true, Description: "suffix test"},
		"indexOf":    {Kind: Method, Sanitizing: true, Description: "substring position"},
		"slice":      {Kind: Method, Description: "substring by range"},
	})

	r.RegisterBuiltin("array", map[string]Entry{
		"length":  {Kind: Property, Description: "element count"},
		"push":    {Kind: Method, Description: "array with arguments appended"},
		"pop":     {Kind: Method, Description: "last element; the array is not changed"},
		"slice":   {Kind: Method, Description: "sub-array by range"},
		"map":     {Kind: Method, Description: "transform elements via callback"},
		"filter":  {Kind: Method, Description: "select elements via predicate"},
		"reduce":  {Kind: Method, Description: "fold elements via callback"},
		"join":    {Kind: Method, Sanitizing: true, Description: "join elements into a string"},
		"sort":    {Kind: Method, Description: "sorted copy"},
		"reverse": {Kind: Method, Description: "reversed copy"},
	})

	r.RegisterBuiltin("object", map[string]Entry{
		"keys":   {Kind: Method, Description: "enumerate keys"},
		"values": {Kind: Method, Description: "enumerate values"},
		"has":    {Kind: Method, Sanitizing: true, Description: "key presence test"},
		"get":    {Kind: Method, Description: "value lookup with default"},
		"delete": {Kind: Method, Description: "remove a key in place"},
	})
}
