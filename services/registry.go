package services

// Registry looks up the configuration of the Minu services.
type Registry interface {
	Get(id ID) (*Service, error)
	List() []*Service
}
