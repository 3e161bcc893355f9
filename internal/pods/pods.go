package pods

import (
	"context"
	"fmt"
	"net"
	"strconv"
)

// SSHPrivatePort is the container port that exposes the remote shell.
const SSHPrivatePort = 22

// Lister lists the pods currently known to the compute pool.
type Lister interface {
	ListPods(ctx context.Context) ([]Pod, error)
}

// Ensure Client implements Lister.
var _ Lister = (*Client)(nil)

// Pod is a worker instance.
type Pod struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Runtime *Runtime `json:"runtime"`
}

// Runtime holds the live state of a running pod. It is null for pods that
// are not running.
type Runtime struct {
	Ports []Port `json:"ports"`
}

// Port is one port mapping of a pod.
type Port struct {
	IP          string `json:"ip"`
	IsIPPublic  bool   `json:"isIpPublic"`
	PrivatePort int    `json:"privatePort"`
	PublicPort  int    `json:"publicPort"`
	Type        string `json:"type"`
}

// Address returns the public host:port of the mapping.
func (p Port) Address() string {
	return net.JoinHostPort(p.IP, strconv.Itoa(p.PublicPort))
}

// SSHEndpoints returns the public TCP mappings of the remote shell port.
func (p Pod) SSHEndpoints() []Port {
	if p.Runtime == nil {
		return nil
	}

	var out []Port
	for _, port := range p.Runtime.Ports {
		if port.IsIPPublic && port.Type == "tcp" && port.PrivatePort == SSHPrivatePort {
			out = append(out, port)
		}
	}

	return out
}

// Client lists pods through the GraphQL API.
type Client struct {
	gql *GraphQLClient
}

// NewClient creates a pod client backed by gql.
func NewClient(gql *GraphQLClient) *Client {
	return &Client{gql: gql}
}

type listPodsData struct {
	Myself struct {
		Pods []Pod `json:"pods"`
	} `json:"myself"`
}

// ListPods returns every pod of the authenticated account.
func (c *Client) ListPods(ctx context.Context) ([]Pod, error) {
	resp, err := c.gql.Execute(ctx, ListPodsQuery, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list pods: %w", err)
	}

	data, err := UnmarshalGraphQLData[listPodsData](resp)
	if err != nil {
		return nil, fmt.Errorf("failed to list pods: %w", err)
	}

	return data.Myself.Pods, nil
}
