package service

// RBACService authorizes by flat capability tags. Membership is exact:
// holding level3 says nothing about level1 or level2, because accounts are
// assigned tag combinations outright rather than deriving them from a
// hierarchy.
type RBACService struct{}

func NewRBACService() *RBACService { return &RBACService{} }

func (s *RBACService) HasAnyRole(held []string, allowed ...string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, want := range allowed {
		for _, have := range held {
			if have == want {
				return true
			}
		}
	}
	return false
}
