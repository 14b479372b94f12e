package config

import (
	"fmt"
	"sort"

	"github.com/syssam/prax/schema"
)

// Server roles.
const (
	RolePrimary   = "primary"
	RoleReplica   = "replica"
	RoleAnalytics = "analytics"
	RoleArchive   = "archive"
)

// Server is one resolved member of a server group.
type Server struct {
	Name           string
	Role           string
	URL            string
	Env            string
	Region         string
	HealthCheck    string
	Weight         int64
	Priority       int64
	MaxConnections int64
	ReadOnly       bool
}

// Topology is the typed form of a server group. It describes the servers
// only; routing queries across them is up to the caller.
type Topology struct {
	Name     string
	Strategy string
	Primary  *Server
	// Replicas are ordered by priority, then by descending weight.
	Replicas  []*Server
	Analytics []*Server
	Archive   []*Server
}

// BuildTopology resolves every server url of g and groups the servers by
// role. A server without a role is the primary when the group declares
// none, and a replica otherwise.
func BuildTopology(g *schema.ServerGroup, opts ...Option) (*Topology, error) {
	o := newOptions(opts)
	t := &Topology{Name: g.Name, Strategy: g.Strategy()}
	var unassigned []*Server
	for _, s := range g.Servers {
		u, env, err := o.resolve(s.URL())
		if err != nil {
			return nil, fmt.Errorf("config: server %s.%s: %w", g.Name, s.Name, err)
		}
		srv := &Server{
			Name:           s.Name,
			Role:           s.Role(),
			URL:            u,
			Env:            env,
			Region:         s.Region(),
			HealthCheck:    s.HealthCheck(),
			Weight:         s.Weight(),
			Priority:       s.Priority(),
			MaxConnections: s.MaxConnections(),
			ReadOnly:       s.ReadOnly(),
		}
		switch srv.Role {
		case RolePrimary:
			if t.Primary != nil {
				return nil, fmt.Errorf("config: server group %s declares more than one primary", g.Name)
			}
			t.Primary = srv
		case RoleReplica:
			t.Replicas = append(t.Replicas, srv)
		case RoleAnalytics:
			t.Analytics = append(t.Analytics, srv)
		case RoleArchive:
			t.Archive = append(t.Archive, srv)
		case "":
			unassigned = append(unassigned, srv)
		default:
			return nil, fmt.Errorf("config: server %s.%s: unknown role %q", g.Name, s.Name, srv.Role)
		}
	}
	for _, srv := range unassigned {
		if t.Primary == nil {
			srv.Role = RolePrimary
			t.Primary = srv
			continue
		}
		srv.Role, srv.ReadOnly = RoleReplica, true
		t.Replicas = append(t.Replicas, srv)
	}
	if t.Primary == nil {
		return nil, fmt.Errorf("config: server group %s has no primary", g.Name)
	}
	sort.SliceStable(t.Replicas, func(i, j int) bool {
		a, b := t.Replicas[i], t.Replicas[j]
		if a.Priority != b.Priority {
			return a.Priority < b.Priority
		}
		return a.Weight > b.Weight
	})
	return t, nil
}

// Readers returns the servers that serve reads: the replicas, or the primary
// when the group has none.
func (t *Topology) Readers() []*Server {
	if len(t.Replicas) == 0 {
		return []*Server{t.Primary}
	}
	return t.Replicas
}

// Servers returns every server, primary first.
func (t *Topology) Servers() []*Server {
	all := make([]*Server, 0, 1+len(t.Replicas)+len(t.Analytics)+len(t.Archive))
	all = append(all, t.Primary)
	all = append(all, t.Replicas...)
	all = append(all, t.Analytics...)
	return append(all, t.Archive...)
}

// TotalWeight sums the weights of the readers.
func (t *Topology) TotalWeight() int64 {
	var w int64
	for _, s := range t.Readers() {
		w += s.Weight
	}
	return w
}
