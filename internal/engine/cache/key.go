package cache

// categorySeparator joins a category and a raw key.
const categorySeparator = ":"

// CompositeKey returns the cache slot identifier for key within category.
// An empty category leaves the key unchanged.
func CompositeKey(category, key string) string {
	if category == "" {
		return key
	}
	return category + categorySeparator + key
}
