package storage

import "strings"

// ArchiveKey builds the object key of a locally harvested log file:
// {prefix}/{date}/{identity}/{filename}. Trailing slashes on prefix are dropped.
func ArchiveKey(prefix, date, identity, filename string) string {
	prefix = strings.TrimRight(prefix, "/")
	key := date + "/" + identity + "/" + filename
	if prefix == "" {
		return key
	}
	return prefix + "/" + key
}

// CollectKey builds the object key of a log file collected from a pod.
func CollectKey(namespace, pod, filename string) string {
	return namespace + "/" + pod + "/" + filename
}
