//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"fmt"
	"os"
	"os/user"

	"google.golang.org/grpc/metadata"

	pb "github.com/oshokin/catpoint/internal/pb/v1"
)

// Actor identifies who issues commands, for the server audit log.
type Actor struct {
	// Hostname is the machine name the command runs on.
	Hostname string
	// Username is the system user running the command.
	Username string
}

// DetectActor gathers host and user information for audit trail.
func DetectActor() (*Actor, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return nil, fmt.Errorf("hostname: %w", err)
	}

	currentUser, err := user.Current()
	if err != nil {
		return nil, fmt.Errorf("current user: %w", err)
	}

	return &Actor{
		Hostname: hostname,
		Username: currentUser.Username,
	}, nil
}

// outgoingContext attaches the actor to the outgoing call metadata.
func (a *Actor) outgoingContext(ctx context.Context) context.Context {
	if a == nil {
		return ctx
	}

	return metadata.AppendToOutgoingContext(ctx,
		pb.MetadataHostname, a.Hostname,
		pb.MetadataUsername, a.Username)
}
