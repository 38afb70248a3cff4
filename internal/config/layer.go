// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/goccy/go-yaml"
)

// envPrefix prefixes the environment names of the §6.1 query keys that accept environment overrides, each
// prefixed DOCBRIDGE_ the way the teacher's own process-env layering prefixes its
// settings.
const envPrefix = "DOCBRIDGE_"

// FromEnv layers environment variable overrides onto p, mutating it in place. Only
// variables that are actually set override their field; an unset variable leaves the
// URI-derived (or file-derived) value untouched.
func FromEnv(p *Properties) error {
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(envPrefix + key); ok {
			*dst = v
		}
	}
	str("USER", &p.User)
	str("PASSWORD", &p.Password)
	str("HOST", &p.Host)
	str("DATABASE", &p.Database)
	str("APP_NAME", &p.AppName)
	str("REPLICA_SET", &p.ReplicaSet)
	str("TLS_CA_FILE", &p.TLSCAFile)
	str("SCHEMA_NAME", &p.SchemaName)
	str("SSH_USER", &p.SSHUser)
	str("SSH_HOST", &p.SSHHost)
	str("SSH_PRIVATE_KEY_FILE", &p.SSHPrivateKeyFile)
	str("SSH_PRIVATE_KEY_PASSPHRASE", &p.SSHPrivateKeyPassphrase)

	if v, ok := os.LookupEnv(envPrefix + "PORT"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse %sPORT: %w", envPrefix, err)
		}
		p.Port = n
	}
	if v, ok := os.LookupEnv(envPrefix + "READ_PREFERENCE"); ok {
		p.ReadPreference = ReadPreference(v)
	}
	if v, ok := os.LookupEnv(envPrefix + "SCAN_METHOD"); ok {
		p.ScanMethod = ScanMethod(v)
	}
	if v, ok := os.LookupEnv(envPrefix + "SCAN_LIMIT"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse %sSCAN_LIMIT: %w", envPrefix, err)
		}
		p.ScanLimit = n
	}
	for _, b := range []struct {
		key string
		dst *bool
	}{
		{"RETRY_READS", &p.RetryReads},
		{"TLS", &p.TLS},
		{"TLS_ALLOW_INVALID_HOSTNAMES", &p.TLSAllowInvalidHostnames},
		{"SSH_STRICT_HOST_KEY_CHECKING", &p.SSHStrictHostKeyChecking},
	} {
		if v, ok := os.LookupEnv(envPrefix + b.key); ok {
			parsed, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("parse %s%s: %w", envPrefix, b.key, err)
			}
			*b.dst = parsed
		}
	}

	return validate.Struct(p)
}

// fileOverrides is the YAML shape FromFile decodes; only fields explicitly present in
// the file override p (a pointer type per field so "absent" and "zero value" are
// distinguishable).
type fileOverrides struct {
	User                     *string `yaml:"user"`
	Password                 *string `yaml:"password"`
	Host                     *string `yaml:"host"`
	Port                     *int    `yaml:"port"`
	Database                 *string `yaml:"database"`
	AppName                  *string `yaml:"appName"`
	ReplicaSet               *string `yaml:"replicaSet"`
	TLSCAFile                *string `yaml:"tlsCAFile"`
	SchemaName               *string `yaml:"schemaName"`
	ReadPreference           *string `yaml:"readPreference"`
	ScanMethod               *string `yaml:"scanMethod"`
	ScanLimit                *int    `yaml:"scanLimit"`
	RetryReads               *bool   `yaml:"retryReads"`
	TLS                      *bool   `yaml:"tls"`
	TLSAllowInvalidHostnames *bool   `yaml:"tlsAllowInvalidHostnames"`
	SSHUser                  *string `yaml:"sshUser"`
	SSHHost                  *string `yaml:"sshHost"`
	SSHPrivateKeyFile        *string `yaml:"sshPrivateKeyFile"`
	SSHPrivateKeyPassphrase  *string `yaml:"sshPrivateKeyPassphrase"`
	SSHStrictHostKeyChecking *bool   `yaml:"sshStrictHostKeyChecking"`
}

// FromFile layers YAML-file overrides from path onto p, mutating it in place. A field
// absent from the file leaves p's existing value untouched.
func FromFile(p *Properties, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}

	var f fileOverrides
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	assignStr(&p.User, f.User)
	assignStr(&p.Password, f.Password)
	assignStr(&p.Host, f.Host)
	assignStr(&p.Database, f.Database)
	assignStr(&p.AppName, f.AppName)
	assignStr(&p.ReplicaSet, f.ReplicaSet)
	assignStr(&p.TLSCAFile, f.TLSCAFile)
	assignStr(&p.SchemaName, f.SchemaName)
	assignStr(&p.SSHUser, f.SSHUser)
	assignStr(&p.SSHHost, f.SSHHost)
	assignStr(&p.SSHPrivateKeyFile, f.SSHPrivateKeyFile)
	assignStr(&p.SSHPrivateKeyPassphrase, f.SSHPrivateKeyPassphrase)
	if f.Port != nil {
		p.Port = *f.Port
	}
	if f.ScanLimit != nil {
		p.ScanLimit = *f.ScanLimit
	}
	if f.ReadPreference != nil {
		p.ReadPreference = ReadPreference(*f.ReadPreference)
	}
	if f.ScanMethod != nil {
		p.ScanMethod = ScanMethod(*f.ScanMethod)
	}
	assignBool(&p.RetryReads, f.RetryReads)
	assignBool(&p.TLS, f.TLS)
	assignBool(&p.TLSAllowInvalidHostnames, f.TLSAllowInvalidHostnames)
	assignBool(&p.SSHStrictHostKeyChecking, f.SSHStrictHostKeyChecking)

	return validate.Struct(p)
}

func assignStr(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func assignBool(dst *bool, src *bool) {
	if src != nil {
		*dst = *src
	}
}
