package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"polling/internal/domain"
	"polling/internal/identity"
)

// Config models polling.yml, the one-time deployment settings of the organization.
type Config struct {
	Organization struct {
		Name  string `yaml:"name" json:"name"`
		Owner struct {
			Address string `yaml:"address" json:"address"`
			Name    string `yaml:"name" json:"name"`
		} `yaml:"owner" json:"owner"`
	} `yaml:"organization" json:"organization"`
	Governance struct {
		TaskApprovalPercentage int    `yaml:"task_approval_percentage" json:"task_approval_percentage"`
		MinimumStakingAmount   uint64 `yaml:"minimum_staking_amount" json:"minimum_staking_amount"`
		VestingPeriodDays      int    `yaml:"vesting_period_days" json:"vesting_period_days"`
	} `yaml:"governance" json:"governance"`
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create one with poll config init --owner-address <addr>", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns nil,nil if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Organization.Name) == "" {
		return fmt.Errorf("config.organization.name is required")
	}
	if strings.TrimSpace(c.Organization.Owner.Name) == "" {
		return fmt.Errorf("config.organization.owner.name is required")
	}
	if c.Organization.Owner.Address == "" {
		return fmt.Errorf("config.organization.owner.address is required")
	}
	if _, err := identity.ParseAddress(c.Organization.Owner.Address); err != nil {
		return fmt.Errorf("config.organization.owner.address: %w", err)
	}
	g := c.Governance
	if g.TaskApprovalPercentage < 0 || g.TaskApprovalPercentage > 100 {
		return fmt.Errorf("config.governance.task_approval_percentage must be between 0 and 100, got %d", g.TaskApprovalPercentage)
	}
	if g.MinimumStakingAmount == 0 {
		return fmt.Errorf("config.governance.minimum_staking_amount must be positive")
	}
	if g.VestingPeriodDays < 0 {
		return fmt.Errorf("config.governance.vesting_period_days must not be negative, got %d", g.VestingPeriodDays)
	}
	return nil
}

// Seed converts a validated config into the ledger's construction parameters.
func (c *Config) Seed() (domain.Organization, error) {
	if err := c.Validate(); err != nil {
		return domain.Organization{}, err
	}
	ownerAddr, _ := identity.ParseAddress(c.Organization.Owner.Address)
	return domain.Organization{
		Name:                   identity.NormalizeText(c.Organization.Name),
		Owner:                  domain.Owner{Address: ownerAddr, Name: identity.NormalizeText(c.Organization.Owner.Name)},
		TaskApprovalPercentage: uint8(c.Governance.TaskApprovalPercentage),
		MinimumStakingAmount:   domain.Amount(c.Governance.MinimumStakingAmount),
		VestingPeriodInDays:    uint32(c.Governance.VestingPeriodDays),
	}, nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "polling.yml")
}

// GenerateDefault returns default config YAML owned by ownerAddress.
func GenerateDefault(ownerAddress string) string {
	return fmt.Sprintf(defaultTemplate, ownerAddress)
}

// Default returns the default Config struct owned by ownerAddress.
func Default(ownerAddress string) *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(GenerateDefault(ownerAddress))).Decode(&cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

const defaultTemplate = `organization:
  name: Green Group LLC
  owner:
    address: %s
    name: John Doe

governance:
  # share of active stakeholders (integer percent) whose votes approve a task
  task_approval_percentage: 66
  # smallest deposit, and smallest balance a partial withdrawal may leave behind
  minimum_staking_amount: 5
  # days a deposit stays locked after the latest stake
  vesting_period_days: 365
`
