package component

// StandardDefinitions returns the built-in forensic component catalog: the
// vocabulary shared by the stock collectors for files, sockets, processes,
// handles and events. Deployments with additional collectors register their
// own definitions alongside these.
func StandardDefinitions() []Definition {
	return []Definition{
		{
			Name: "MemoryObject",
			Doc:  "Bridge to the raw kernel structure an entity was parsed from.",
			Fields: []Field{
				{Name: "base_object", Type: TypeObject, Doc: "raw structure handle"},
				{Name: "type", Type: TypeString, Doc: "kernel structure type, e.g. socket or vnode"},
			},
		},
		{
			Name: "Named",
			Doc:  "Human-readable presentation of an entity.",
			Fields: []Field{
				{Name: "name", Type: TypeString},
				{Name: "kind", Type: TypeString},
			},
		},
		{
			Name: "Process",
			Fields: []Field{
				{Name: "pid", Type: TypeInt},
				{Name: "ppid", Type: TypeInt},
				{Name: "command", Type: TypeString},
				{Name: "user", Type: TypeIdentity, Doc: "owning User entity"},
			},
		},
		{
			Name: "User",
			Fields: []Field{
				{Name: "uid", Type: TypeInt},
				{Name: "username", Type: TypeString},
				{Name: "home_dir", Type: TypeString},
			},
		},
		{
			Name: "Handle",
			Doc:  "An open descriptor connecting a process to a resource.",
			Fields: []Field{
				{Name: "process", Type: TypeIdentity},
				{Name: "fd", Type: TypeInt},
				{Name: "flags", Type: TypeString},
				{Name: "resource", Type: TypeIdentity, Doc: "entity the descriptor points at"},
			},
		},
		{
			Name: "File",
			Fields: []Field{
				{Name: "path", Type: TypeString},
				{Name: "type", Type: TypeEnum, Values: []string{
					"file", "directory", "socket", "device", "fifo", "link", "unknown",
				}},
				{Name: "mount", Type: TypeIdentity},
			},
		},
		{
			Name: "Socket",
			Doc:  "Local (UNIX-domain) socket endpoint details.",
			Fields: []Field{
				{Name: "type", Type: TypeString, Doc: "stream, dgram, ..."},
				{Name: "file", Type: TypeIdentity, Doc: "backing File entity, if bound"},
				{Name: "address", Type: TypeString},
				{Name: "connected", Type: TypeString, Doc: "peer control block address"},
			},
		},
		{
			Name: "Connection",
			Fields: []Field{
				{Name: "protocol_family", Type: TypeString, Doc: "INET, INET6, UNIX, ..."},
			},
		},
		{
			Name: "OSILayer3",
			Fields: []Field{
				{Name: "src_addr", Type: TypeString},
				{Name: "dst_addr", Type: TypeString},
				{Name: "protocol", Type: TypeEnum, Values: []string{"IPv4", "IPv6"}},
			},
		},
		{
			Name: "OSILayer4",
			Fields: []Field{
				{Name: "src_port", Type: TypeInt},
				{Name: "dst_port", Type: TypeInt},
				{Name: "protocol", Type: TypeString, Doc: "TCP, UDP, ..."},
				{Name: "state", Type: TypeString},
			},
		},
		{
			Name: "Timestamps",
			Fields: []Field{
				{Name: "created_at", Type: TypeDateTime},
				{Name: "modified_at", Type: TypeDateTime},
				{Name: "accessed_at", Type: TypeDateTime},
				{Name: "backup_at", Type: TypeDateTime},
			},
		},
		{
			Name: "Permissions",
			Fields: []Field{
				{Name: "owner", Type: TypeIdentity},
				{Name: "group", Type: TypeIdentity},
				{Name: "mode", Type: TypeString},
			},
		},
		{
			Name: "Event",
			Doc:  "A fact about an actor doing something to a target.",
			Fields: []Field{
				{Name: "actor", Type: TypeIdentity},
				{Name: "action", Type: TypeString},
				{Name: "target", Type: TypeIdentity},
				{Name: "category", Type: TypeEnum, Values: []string{"latest", "recent", "historic"}},
				{Name: "timestamp", Type: TypeDateTime},
			},
		},
	}
}
