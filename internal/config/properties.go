// SPDX-License-Identifier: Apache-2.0

// Package config parses and layers docbridge's connection configuration (C9, §6.1): a
// URI is the primary source, with environment variables and an optional YAML file able
// to override individual fields for deployments that would rather not embed credentials
// in a connection string.
package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ReadPreference is the closed set §6.1 names.
type ReadPreference string

const (
	ReadPrimary            ReadPreference = "primary"
	ReadPrimaryPreferred   ReadPreference = "primaryPreferred"
	ReadSecondary          ReadPreference = "secondary"
	ReadSecondaryPreferred ReadPreference = "secondaryPreferred"
	ReadNearest            ReadPreference = "nearest"
)

// ScanMethod is the closed set of Inference Engine document sampling strategies §6.1
// names.
type ScanMethod string

const (
	ScanRandom     ScanMethod = "random"
	ScanIDForward  ScanMethod = "idForward"
	ScanIDReverse  ScanMethod = "idReverse"
	ScanAll        ScanMethod = "all"
)

// Properties is the fully-resolved connection configuration (§6.1), validated with
// struct tags the way the teacher validates its own request/config types.
type Properties struct {
	Scheme   string `validate:"required"`
	User     string
	Password string
	Host     string `validate:"required"`
	Port     int
	Database string `validate:"required"`

	AppName                  string
	LoginTimeoutSec          int            `validate:"gte=0"`
	ReadPreference           ReadPreference `validate:"oneof=primary primaryPreferred secondary secondaryPreferred nearest"`
	ReplicaSet               string
	RetryReads               bool
	TLS                      bool
	TLSAllowInvalidHostnames bool
	TLSCAFile                string
	SchemaName               string `validate:"required"`
	ScanMethod               ScanMethod `validate:"oneof=random idForward idReverse all"`
	ScanLimit                int    `validate:"gt=0"`

	SSHUser                  string
	SSHHost                  string `validate:"required_with=SSHUser"`
	SSHPrivateKeyFile        string `validate:"required_with=SSHUser"`
	SSHPrivateKeyPassphrase  string
	SSHStrictHostKeyChecking bool
}

var validate = validator.New()

// defaults applies §6.1's bracketed defaults before validation.
func defaults() Properties {
	return Properties{
		ReadPreference:           ReadPrimary,
		RetryReads:               true,
		TLS:                      true,
		SchemaName:               "_default",
		ScanMethod:               ScanRandom,
		ScanLimit:                1000,
		SSHStrictHostKeyChecking: true,
	}
}

// Parse parses a docbridge connection URI (§6.1): scheme://[user[:password]@]host[:port]
// /database[?k=v[&k=v...]]. Unrecognized query keys are silently ignored; user and
// password are percent-decoded.
func Parse(raw string) (*Properties, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse connection uri: %w", err)
	}
	if u.Scheme == "" {
		return nil, fmt.Errorf("connection uri %q has no scheme", raw)
	}

	p := defaults()
	p.Scheme = u.Scheme
	p.Host = u.Hostname()
	p.Database = strings.TrimPrefix(u.Path, "/")

	if u.Port() != "" {
		port, err := strconv.Atoi(u.Port())
		if err != nil {
			return nil, fmt.Errorf("parse connection uri port: %w", err)
		}
		p.Port = port
	}
	if u.User != nil {
		p.User = u.User.Username()
		p.Password, _ = u.User.Password()
	}

	if err := applyQuery(&p, u.Query()); err != nil {
		return nil, err
	}

	if err := validate.Struct(p); err != nil {
		return nil, fmt.Errorf("invalid connection configuration: %w", err)
	}
	return &p, nil
}

func applyQuery(p *Properties, q url.Values) error {
	getInt := func(key string, dst *int) error {
		v := q.Get(key)
		if v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse %s: %w", key, err)
		}
		*dst = n
		return nil
	}
	getBool := func(key string, dst *bool) error {
		v := q.Get(key)
		if v == "" {
			return nil
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("parse %s: %w", key, err)
		}
		*dst = b
		return nil
	}

	p.AppName = firstNonEmpty(q.Get("appName"), p.AppName)
	if err := getInt("loginTimeoutSec", &p.LoginTimeoutSec); err != nil {
		return err
	}
	if v := q.Get("readPreference"); v != "" {
		p.ReadPreference = ReadPreference(v)
	}
	p.ReplicaSet = firstNonEmpty(q.Get("replicaSet"), p.ReplicaSet)
	if err := getBool("retryReads", &p.RetryReads); err != nil {
		return err
	}
	if err := getBool("tls", &p.TLS); err != nil {
		return err
	}
	if err := getBool("tlsAllowInvalidHostnames", &p.TLSAllowInvalidHostnames); err != nil {
		return err
	}
	p.TLSCAFile = firstNonEmpty(q.Get("tlsCAFile"), p.TLSCAFile)
	if v := q.Get("scanMethod"); v != "" {
		p.ScanMethod = ScanMethod(v)
	}
	if err := getInt("scanLimit", &p.ScanLimit); err != nil {
		return err
	}
	p.SchemaName = firstNonEmpty(q.Get("schemaName"), p.SchemaName)
	p.SSHUser = firstNonEmpty(q.Get("sshUser"), p.SSHUser)
	p.SSHHost = firstNonEmpty(q.Get("sshHost"), p.SSHHost)
	p.SSHPrivateKeyFile = firstNonEmpty(q.Get("sshPrivateKeyFile"), p.SSHPrivateKeyFile)
	p.SSHPrivateKeyPassphrase = firstNonEmpty(q.Get("sshPrivateKeyPassphrase"), p.SSHPrivateKeyPassphrase)
	if err := getBool("sshStrictHostKeyChecking", &p.SSHStrictHostKeyChecking); err != nil {
		return err
	}
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// String re-serializes p back to a connection URI, with the password redacted — used by
// the management CLI so operators can see which endpoint a schema came from without ever
// printing credentials (§6.3 supplement).
func (p Properties) String() string {
	return p.uri("REDACTED")
}

// ConnectionURI re-serializes p back to a connection URI with the real password, for the
// driver's own use when dialing the document store. Never logged or displayed.
func (p Properties) ConnectionURI() string {
	return p.uri(p.Password)
}

func (p Properties) uri(password string) string {
	u := url.URL{Scheme: p.Scheme, Host: p.Host, Path: "/" + p.Database}
	if p.Port != 0 {
		u.Host = fmt.Sprintf("%s:%d", p.Host, p.Port)
	}
	if p.User != "" {
		if password != "" {
			u.User = url.UserPassword(p.User, password)
		} else {
			u.User = url.User(p.User)
		}
	}

	q := url.Values{}
	q.Set("schemaName", p.SchemaName)
	q.Set("readPreference", string(p.ReadPreference))
	q.Set("scanMethod", string(p.ScanMethod))
	q.Set("scanLimit", strconv.Itoa(p.ScanLimit))
	if p.AppName != "" {
		q.Set("appName", p.AppName)
	}
	if p.ReplicaSet != "" {
		q.Set("replicaSet", p.ReplicaSet)
	}
	u.RawQuery = q.Encode()

	return u.String()
}
