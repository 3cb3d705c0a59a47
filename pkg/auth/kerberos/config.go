package kerberos

import (
	"os"
	"time"
)

// DefaultTimeout bounds a login exchange when none is configured.
const DefaultTimeout = 10 * time.Second

// Config configures the Kerberos strategy.
type Config struct {
	// Realm is appended to logins that carry none.
	Realm string `mapstructure:"realm" yaml:"realm"`

	// Krb5Conf is the krb5.conf path. Default /etc/krb5.conf.
	Krb5Conf string `mapstructure:"krb5_conf" yaml:"krb5_conf,omitempty"`

	// KeytabPath and ServicePrincipal enable KDC verification.
	KeytabPath       string `mapstructure:"keytab_path" yaml:"keytab_path,omitempty"`
	ServicePrincipal string `mapstructure:"service_principal" yaml:"service_principal,omitempty"`

	// Principals maps principals to local usernames. Unlisted principals
	// of Realm map to their name.
	Principals []PrincipalMapping `mapstructure:"principals" yaml:"principals,omitempty"`

	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// PrincipalMapping maps Principal ("name@REALM") to Username.
type PrincipalMapping struct {
	Principal string `mapstructure:"principal" yaml:"principal"`
	Username  string `mapstructure:"username" yaml:"username"`
}

// resolveKeytabPath resolves the keytab path with environment variable override.
//
// Resolution order (highest priority first):
//  1. LABGATE_KERBEROS_KEYTAB env var
//  2. configPath from configuration file
func resolveKeytabPath(configPath string) string {
	if envPath := os.Getenv("LABGATE_KERBEROS_KEYTAB"); envPath != "" {
		return envPath
	}
	return configPath
}

// resolveServicePrincipal resolves the service principal with environment variable override.
func resolveServicePrincipal(configPrincipal string) string {
	if envSPN := os.Getenv("LABGATE_KERBEROS_PRINCIPAL"); envSPN != "" {
		return envSPN
	}
	return configPrincipal
}

// resolveKrb5ConfPath resolves the krb5.conf path with environment variable override.
//
// Resolution order (highest priority first):
//  1. LABGATE_KERBEROS_KRB5CONF env var
//  2. configPath from configuration file
//  3. Default: /etc/krb5.conf
func resolveKrb5ConfPath(configPath string) string {
	if envPath := os.Getenv("LABGATE_KERBEROS_KRB5CONF"); envPath != "" {
		return envPath
	}
	if configPath != "" {
		return configPath
	}
	return "/etc/krb5.conf"
}
