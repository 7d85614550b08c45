package audit

import "strings"

// ActionResource holds action and resource derived from a gRPC full method name.
type ActionResource struct {
	Action   string
	Resource string
}

// verbPrefixes maps method-name prefixes to audit verbs, checked in order.
var verbPrefixes = []struct {
	prefix string
	action string
}{
	{"Get", "get"},
	{"List", "list"},
	{"Create", "create"},
	{"Update", "update"},
	{"Delete", "delete"},
	{"Revoke", "revoke"},
	{"Switch", "switch"},
	{"Cleanup", "cleanup"},
	{"Check", "check"},
	{"Watch", "watch"},
}

// ParseFullMethod returns action and resource for a gRPC full method (e.g. /grpc.health.v1.Health/Check).
// Action is a verb from the method prefix, or the lowercased method name for others.
// Resource is derived from the service name (e.g. SessionService -> session).
func ParseFullMethod(fullMethod string) ActionResource {
	// fullMethod format: /package.v1.ServiceName/MethodName
	slash := strings.LastIndex(fullMethod, "/")
	if slash < 0 {
		return ActionResource{Action: "unknown", Resource: "unknown"}
	}
	method := fullMethod[slash+1:]
	beforeSlash := fullMethod[:slash]
	dot := strings.LastIndex(beforeSlash, ".")
	if dot < 0 {
		return ActionResource{Action: strings.ToLower(method), Resource: "unknown"}
	}
	return ActionResource{
		Action:   methodToAction(method),
		Resource: serviceToResource(beforeSlash[dot+1:]),
	}
}

func serviceToResource(serviceName string) string {
	// SessionService -> session, ServerReflection -> serverReflection
	s := strings.TrimSuffix(serviceName, "Service")
	if s == "" {
		return "unknown"
	}
	return strings.ToLower(s[0:1]) + s[1:]
}

func methodToAction(method string) string {
	for _, v := range verbPrefixes {
		if strings.HasPrefix(method, v.prefix) && method != v.prefix {
			return v.action
		}
	}
	return strings.ToLower(method)
}
