package main

import (
	"strings"

	"github.com/j19015/blog-stack/internal/topology"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
)

// resourceName joins parts into a lower-case Pulumi resource name, so
// "WebServer1", "sg" becomes "webserver1-sg".
func resourceName(parts ...string) string {
	cleaned := make([]string, 0, len(parts))
	for _, p := range parts {
		cleaned = append(cleaned, topology.NormalizeID(p))
	}
	return strings.Join(cleaned, "-")
}

func nameTag(name string) pulumi.StringMap {
	return pulumi.StringMap{
		"Name": pulumi.String(name),
	}
}
