package main

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/BurntSushi/toml"
)

// RemotesConfig is the CLI's list of named servers, stored as TOML under
// the user config directory.
type RemotesConfig struct {
	Active  string            `toml:"active"`
	Remotes map[string]Remote `toml:"remotes"`
}

// Remote is where one evreg deployment can be reached.
type Remote struct {
	URL      string `toml:"url"`
	GRPCAddr string `toml:"grpc_addr,omitempty"`
	NATSURL  string `toml:"nats_url,omitempty"`
}

func (r Remote) validate() error {
	u, err := url.Parse(r.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid URL %q (want http:// or https://)", r.URL)
	}
	if r.NATSURL != "" {
		if u, err := url.Parse(r.NATSURL); err != nil || u.Host == "" {
			return fmt.Errorf("invalid NATS URL %q", r.NATSURL)
		}
	}
	return nil
}

// Set adds or replaces a remote.
func (c *RemotesConfig) Set(name string, r Remote) error {
	if name == "" {
		return fmt.Errorf("remote name must not be empty")
	}
	if err := r.validate(); err != nil {
		return err
	}
	if c.Remotes == nil {
		c.Remotes = map[string]Remote{}
	}
	c.Remotes[name] = r
	return nil
}

// Remove deletes a remote, clearing the active selection if it pointed there.
func (c *RemotesConfig) Remove(name string) error {
	if _, ok := c.Remotes[name]; !ok {
		return fmt.Errorf("remote %q not found", name)
	}
	delete(c.Remotes, name)
	if c.Active == name {
		c.Active = ""
	}
	return nil
}

// Use makes name the active remote.
func (c *RemotesConfig) Use(name string) error {
	if _, ok := c.Remotes[name]; !ok {
		return fmt.Errorf("remote %q not found", name)
	}
	c.Active = name
	return nil
}

// Names returns the remote names in sorted order.
func (c *RemotesConfig) Names() []string {
	names := make([]string, 0, len(c.Remotes))
	for name := range c.Remotes {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func remoteConfigPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "evreg", "remotes.toml"), nil
}

func loadRemotesConfig() (*RemotesConfig, error) {
	path, err := remoteConfigPath()
	if err != nil {
		return nil, err
	}
	cfg := &RemotesConfig{}
	if _, err := toml.DecodeFile(path, cfg); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if cfg.Remotes == nil {
		cfg.Remotes = map[string]Remote{}
	}
	return cfg, nil
}

// saveRemotesConfig replaces the file atomically so a crash never leaves a
// truncated config behind.
func saveRemotesConfig(cfg *RemotesConfig) error {
	path, err := remoteConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".remotes-*.toml")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := toml.NewEncoder(tmp).Encode(cfg); err != nil {
		tmp.Close()
		return fmt.Errorf("encoding remotes: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// The active remote is read once per process; flag defaults depend on it.
var activeRemote = sync.OnceValues(func() (Remote, bool) {
	cfg, err := loadRemotesConfig()
	if err != nil || cfg.Active == "" {
		return Remote{}, false
	}
	r, ok := cfg.Remotes[cfg.Active]
	return r, ok
})
