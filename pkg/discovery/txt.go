package discovery

import (
	"strconv"
	"strings"

	"github.com/backkem/txpermissions/pkg/permission"
)

// TXT record keys.
const (
	TXTKeyTypeGroup = "typeGroup"
	TXTKeyVersion   = "version"
	TXTKeyPath      = "path"
)

// ServiceTXT is the TXT record of a query endpoint.
type ServiceTXT struct {
	TypeGroup uint32
	Version   uint8

	// Path is the URL prefix the routes are mounted under. Empty means "/".
	Path string
}

// NewServiceTXT returns the record for this build's permission assets.
func NewServiceTXT(path string) ServiceTXT {
	return ServiceTXT{
		TypeGroup: permission.TypeGroup,
		Version:   permission.Version,
		Path:      path,
	}
}

// Encode returns the TXT strings.
func (s ServiceTXT) Encode() []string {
	path := s.Path
	if path == "" {
		path = "/"
	}
	return []string{
		TXTKeyTypeGroup + "=" + strconv.FormatUint(uint64(s.TypeGroup), 10),
		TXTKeyVersion + "=" + strconv.FormatUint(uint64(s.Version), 10),
		TXTKeyPath + "=" + path,
	}
}

// ParseTXT splits key=value records into a map. Records without '=' or
// with an empty key are ignored.
func ParseTXT(records []string) map[string]string {
	result := make(map[string]string)
	for _, record := range records {
		if k, v, ok := strings.Cut(record, "="); ok && k != "" {
			result[k] = v
		}
	}
	return result
}

// ParseServiceTXT parses the TXT record of a query endpoint. typeGroup and
// version are required.
func ParseServiceTXT(records []string) (ServiceTXT, error) {
	m := ParseTXT(records)

	var s ServiceTXT
	v, ok := m[TXTKeyTypeGroup]
	if !ok {
		return ServiceTXT{}, ErrInvalidTXTRecord
	}
	tg, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		return ServiceTXT{}, ErrInvalidTXTRecord
	}
	s.TypeGroup = uint32(tg)

	v, ok = m[TXTKeyVersion]
	if !ok {
		return ServiceTXT{}, ErrInvalidTXTRecord
	}
	ver, err := strconv.ParseUint(v, 10, 8)
	if err != nil {
		return ServiceTXT{}, ErrInvalidTXTRecord
	}
	s.Version = uint8(ver)

	s.Path = m[TXTKeyPath]
	if s.Path == "" {
		s.Path = "/"
	}
	return s, nil
}

// Compatible reports whether the endpoint serves the same permission
// assets as this build.
func (s ServiceTXT) Compatible() bool {
	return s.TypeGroup == permission.TypeGroup && s.Version == permission.Version
}
