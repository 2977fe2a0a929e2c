package domain

import (
	"net"
	"strconv"
)

// SSHConfig holds reachability and credentials for one host.
type SSHConfig struct {
	Host     string `yaml:"host" json:"host"`
	User     string `yaml:"user" json:"user"`
	Password string `yaml:"password" json:"-"`
	Port     int    `yaml:"port" json:"port"`
}

// Addr returns host:port with the default SSH port applied.
func (c SSHConfig) Addr() string {
	port := c.Port
	if port <= 0 {
		port = 22
	}
	return net.JoinHostPort(c.Host, strconv.Itoa(port))
}

// TargetConfig describes how to address the NVMe-oF target: management
// SSH reachability plus fabric addressing and the exported backend.
type TargetConfig struct {
	SSH           SSHConfig `yaml:"ssh" json:"ssh"`
	DataIP        string    `yaml:"data_ip" json:"data_ip"`
	SubsysNQN     string    `yaml:"subsys_nqn" json:"subsys_nqn"`
	Port          int       `yaml:"port" json:"port"`
	BackendDevice string    `yaml:"backend_device" json:"backend_device"`
	PortID        int       `yaml:"port_id" json:"port_id"`
}

// SvcPort returns the fabric service port with the NVMe-TCP default applied.
func (c TargetConfig) SvcPort() int {
	if c.Port <= 0 {
		return 4420
	}
	return c.Port
}

// Backend returns the backend block device with the default applied.
func (c TargetConfig) Backend() string {
	if c.BackendDevice == "" {
		return "/dev/nvme0n1"
	}
	return c.BackendDevice
}

// NvmetPortID returns the configfs port id with the default applied.
func (c TargetConfig) NvmetPortID() int {
	if c.PortID <= 0 {
		return 1
	}
	return c.PortID
}

// InitiatorConfig describes how to reach the NVMe-oF initiator host.
type InitiatorConfig struct {
	SSH SSHConfig `yaml:"ssh" json:"ssh"`
}
