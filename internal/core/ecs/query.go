package ecs

// Each2 calls fn for every entity that has a component in both managers.
// It walks the smaller manager and looks the other one up.
func Each2(ma, mb *ComponentManager, fn func(entity, a, b Ref)) {
	if ma.Len() <= mb.Len() {
		for a := range ma.All() {
			entity := ma.Entity(a)
			if b := mb.ForEntity(entity); b.IsValid() {
				fn(entity, a, b)
			}
		}
		return
	}
	for b := range mb.All() {
		entity := mb.Entity(b)
		if a := ma.ForEntity(entity); a.IsValid() {
			fn(entity, a, b)
		}
	}
}
