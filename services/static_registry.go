package services

import (
	"fmt"
	"net/url"
	"sort"
	"sync"

	apperrors "github.com/jrsteele09/minu-sso/internal/errors"
)

var _ Registry = (*StaticRegistry)(nil)

// StaticRegistry is an in-memory Registry populated once at startup.
type StaticRegistry struct {
	services map[ID]*Service
	lock     sync.RWMutex
}

// NewRegistry validates and registers the given services.
func NewRegistry(svcs ...*Service) (*StaticRegistry, error) {
	r := &StaticRegistry{
		services: make(map[ID]*Service),
	}
	for _, svc := range svcs {
		if err := r.Upsert(svc); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// NewRegistryFromOrigins builds a registry for every service with a configured origin.
// origins is keyed by service name, e.g. "find" -> "https://find.minu.best".
func NewRegistryFromOrigins(clientID string, redirectURIs, scopes []string, origins map[string]string) (*StaticRegistry, error) {
	svcs := make([]*Service, 0, len(origins))
	for name, origin := range origins {
		if origin == "" {
			continue
		}
		id, err := Parse(name)
		if err != nil {
			return nil, fmt.Errorf("[NewRegistryFromOrigins] %w", err)
		}
		svcs = append(svcs, &Service{
			ID:           id,
			Name:         "Minu " + string(id),
			Origin:       origin,
			ClientID:     clientID,
			RedirectURIs: redirectURIs,
			Scopes:       scopes,
		})
	}
	return NewRegistry(svcs...)
}

// Upsert adds or replaces a service definition
func (r *StaticRegistry) Upsert(svc *Service) error {
	if svc == nil {
		return fmt.Errorf("[StaticRegistry Upsert] service is nil")
	}
	if !svc.ID.Valid() {
		return apperrors.Wrapf(apperrors.ErrUnknownService, "[StaticRegistry Upsert] %q", svc.ID)
	}
	if svc.ClientID == "" {
		return fmt.Errorf("[StaticRegistry Upsert] %s: client id is required", svc.ID)
	}
	u, err := url.Parse(svc.Origin)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("[StaticRegistry Upsert] %s: invalid origin %q", svc.ID, svc.Origin)
	}

	r.lock.Lock()
	defer r.lock.Unlock()
	r.services[svc.ID] = svc
	return nil
}

func (r *StaticRegistry) Get(id ID) (*Service, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	svc, ok := r.services[id]
	if !ok {
		return nil, apperrors.Wrapf(apperrors.ErrUnknownService, "%q", id)
	}
	return svc, nil
}

func (r *StaticRegistry) List() []*Service {
	r.lock.RLock()
	defer r.lock.RUnlock()

	svcs := make([]*Service, 0, len(r.services))
	for _, v := range r.services {
		svcs = append(svcs, v)
	}

	sort.Slice(svcs, func(i, j int) bool {
		return svcs[i].ID < svcs[j].ID
	})
	return svcs
}
