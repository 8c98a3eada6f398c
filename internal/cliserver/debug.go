package cliserver

import (
	"os"
	"strings"
)

const javaDebugFlag = "-J=-agentlib:jdwp=transport=dt_socket,address=localhost:9012,server=n,suspend=y,quiet=y"

// ShouldDebugIdeServer reports whether the language server should wait for a
// Java debugger.
func ShouldDebugIdeServer() bool { return isEnvTrue("IDE_SERVER_JAVA_DEBUG") }

// ShouldDebugQueryServer reports whether the query server should wait for a
// Java debugger.
func ShouldDebugQueryServer() bool { return isEnvTrue("QUERY_SERVER_JAVA_DEBUG") }

// ShouldDebugCliServer reports whether the cli-server worker should wait for a
// Java debugger on localhost:9012.
func ShouldDebugCliServer() bool { return isEnvTrue("CLI_SERVER_JAVA_DEBUG") }

func isEnvTrue(name string) bool {
	v, ok := os.LookupEnv(name)
	if !ok {
		return false
	}
	switch strings.ToLower(v) {
	case "0", "false":
		return false
	}
	return true
}
