package pb

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"
)

// protoRoot is the protoc include root relative to this package.
const protoRoot = "../../../api"

// TestServiceDesc_MatchesProto keeps the hand-written descriptor in sync with its .proto file.
func TestServiceDesc_MatchesProto(t *testing.T) {
	t.Parallel()

	file, ok := securityServiceDesc.Metadata.(string)
	require.True(t, ok)

	source, err := os.ReadFile(filepath.Join(protoRoot, file))
	require.NoError(t, err)

	require.Contains(t, string(source), "package catpoint.v1;")
	require.Contains(t, string(source), "service SecurityService {")

	rpc := regexp.MustCompile(`rpc (\w+)\(`)

	var declared []string

	for _, match := range rpc.FindAllStringSubmatch(string(source), -1) {
		declared = append(declared, match[1])
	}

	var described []string

	for _, method := range securityServiceDesc.Methods {
		described = append(described, method.MethodName)
	}

	for _, stream := range securityServiceDesc.Streams {
		described = append(described, stream.StreamName)
	}

	require.ElementsMatch(t, declared, described)
	require.Equal(t, ServiceName, securityServiceDesc.ServiceName)
}
