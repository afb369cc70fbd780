package registry

import (
	"bytes"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/feral-file/batch-ledger/internal/adapter"
	"github.com/feral-file/batch-ledger/internal/contract"
	"github.com/feral-file/batch-ledger/internal/domain"
)

// DeploymentRegistry resolves the ledger contract deployed on a chain
//
//go:generate mockgen -source=deployment.go -destination=../mocks/deployment_registry.go -package=mocks -mock_names=DeploymentRegistry=MockDeploymentRegistry,DeploymentRegistryLoader=MockDeploymentRegistryLoader
type DeploymentRegistry interface {
	// Lookup returns the deployment for a chain, or an UnsupportedNetwork error
	Lookup(chain domain.Chain) (*Deployment, error)

	// Chains returns the chains with a known deployment, sorted
	Chains() []domain.Chain
}

// Deployment describes a ledger contract deployment
type Deployment struct {
	Chain      domain.Chain `json:"chain"`
	Name       string       `json:"name"`
	Address    string       `json:"address"`
	ABIPath    string       `json:"abi_path,omitempty"`
	StartBlock uint64       `json:"start_block"`

	// resolved on load
	ContractAddress common.Address  `json:"-"`
	Codec           *contract.Codec `json:"-"`
}

// DeploymentRegistryData represents the structure of the registry JSON file
type DeploymentRegistryData struct {
	Version     int          `json:"version"`
	Deployments []Deployment `json:"deployments"`
}

type deploymentRegistry struct {
	byChain map[domain.Chain]*Deployment
}

// NewDeploymentRegistry builds a registry from already resolved deployments
func NewDeploymentRegistry(deployments ...*Deployment) DeploymentRegistry {
	r := &deploymentRegistry{byChain: make(map[domain.Chain]*Deployment, len(deployments))}
	for _, d := range deployments {
		if d.Codec == nil {
			d.Codec = contract.MustDefaultCodec()
		}
		if d.ContractAddress == (common.Address{}) && common.IsHexAddress(d.Address) {
			d.ContractAddress = common.HexToAddress(d.Address)
		}
		r.byChain[d.Chain] = d
	}
	return r
}

func (r *deploymentRegistry) Lookup(chain domain.Chain) (*Deployment, error) {
	d, ok := r.byChain[domain.Chain(strings.ToLower(string(chain)))]
	if !ok {
		return nil, &domain.LedgerError{Kind: domain.ErrUnsupportedNetwork, Op: "lookupDeployment", Chain: chain}
	}
	return d, nil
}

func (r *deploymentRegistry) Chains() []domain.Chain {
	chains := make([]domain.Chain, 0, len(r.byChain))
	for c := range r.byChain {
		chains = append(chains, c)
	}
	sort.Slice(chains, func(i, j int) bool { return chains[i] < chains[j] })
	return chains
}

// DeploymentRegistryLoader defines the interface for loading deployment registries from files
type DeploymentRegistryLoader interface {
	// Load loads the deployment registry from a JSON file
	Load(filePath string) (DeploymentRegistry, error)
}

type deploymentRegistryLoader struct {
	fs   adapter.FileSystem
	json adapter.JSON
}

// NewDeploymentRegistryLoader creates a new DeploymentRegistryLoader with injected dependencies
func NewDeploymentRegistryLoader(fs adapter.FileSystem, json adapter.JSON) DeploymentRegistryLoader {
	return &deploymentRegistryLoader{
		fs:   fs,
		json: json,
	}
}

// Load loads the deployment registry from a JSON file.
// ABI paths are resolved relative to the registry file.
func (l *deploymentRegistryLoader) Load(filePath string) (DeploymentRegistry, error) {
	data, err := l.fs.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read registry file: %w", err)
	}

	var registryData DeploymentRegistryData
	if err := l.json.Unmarshal(data, &registryData); err != nil {
		return nil, fmt.Errorf("failed to parse registry JSON: %w", err)
	}

	registry := &deploymentRegistry{byChain: make(map[domain.Chain]*Deployment)}
	for i := range registryData.Deployments {
		d := &registryData.Deployments[i]

		d.Chain = domain.Chain(strings.ToLower(string(d.Chain)))
		if !domain.IsValidChain(d.Chain) {
			return nil, fmt.Errorf("deployment %d: unsupported chain %q", i, d.Chain)
		}
		if _, dup := registry.byChain[d.Chain]; dup {
			return nil, fmt.Errorf("deployment %d: duplicate chain %s", i, d.Chain)
		}

		addr, err := domain.ParseAddress(d.Address)
		if err != nil {
			return nil, fmt.Errorf("deployment %d: %w", i, err)
		}
		if domain.IsZeroAddress(addr) {
			return nil, fmt.Errorf("deployment %d: contract address is the zero address", i)
		}
		d.ContractAddress = addr

		if d.Name == "" {
			d.Name = domain.LEDGER_CONTRACT_NAME
		}

		if d.ABIPath == "" {
			d.Codec = contract.MustDefaultCodec()
		} else {
			abiPath := d.ABIPath
			if !filepath.IsAbs(abiPath) {
				abiPath = filepath.Join(filepath.Dir(filePath), abiPath)
			}
			raw, err := l.fs.ReadFile(abiPath)
			if err != nil {
				return nil, fmt.Errorf("deployment %d: failed to read ABI: %w", i, err)
			}
			parsed, err := contract.ParseABI(bytes.NewReader(raw))
			if err != nil {
				return nil, fmt.Errorf("deployment %d: %w", i, err)
			}
			d.Codec = contract.NewCodec(parsed)
		}

		registry.byChain[d.Chain] = d
	}

	return registry, nil
}
