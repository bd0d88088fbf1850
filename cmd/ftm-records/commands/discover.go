package commands

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/Jacky0719/Wifi-indoor-localization-with-rtt-and-csi/internal/discovery"
)

// browseFunc is discovery.Browse, replaced in tests.
var browseFunc = discovery.Browse

// RunDiscover runs the discover command.
func RunDiscover(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("discover", stderr)
	service := fs.String("service", discovery.DefaultService, "service type to browse")
	domain := fs.String("domain", discovery.DefaultDomain, "browse domain")
	iface := fs.String("iface", "", "network interface (default all)")
	timeout := fs.Duration("timeout", 3*time.Second, "how long to browse")
	if err := fs.Parse(args); err != nil {
		return exitCommandError
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	nodes, err := browseFunc(ctx, *service, *domain, *iface)
	if err != nil {
		fmt.Fprintf(stderr, "Error browsing: %v\n", err)
		return exitCommandError
	}

	found := 0
	for n := range nodes {
		found++
		fmt.Fprintf(stdout, "%s  %s:%d  mode=%s role=%s ssid=%s mac=%s ver=%s  [%s]\n",
			n.Instance, n.Host, n.Port, n.Info.Mode, n.Info.Role, n.Info.SSID, n.Info.MAC, n.Info.Version,
			strings.Join(n.Addresses, ", "))
	}
	if found == 0 {
		fmt.Fprintf(stderr, "No %s nodes found within %v\n", *service, *timeout)
		return exitNoData
	}
	return exitSuccess
}
