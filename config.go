package diffmap

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/goccy/go-yaml"

	"github.com/nozzle/diffmap/diffusion"
	"github.com/nozzle/diffmap/graph"
	"github.com/nozzle/diffmap/nn"
	"github.com/nozzle/diffmap/spectral"
)

// Weights selects which graphs Run writes to the store.
const (
	WeightDistances    = "distances"
	WeightSimilarities = "similarities"
)

// Config configures the neighbors graph and diffusion map computation.
type Config struct {
	// NNeighbors is the neighbor count k, including the point itself.
	// Values larger than the dataset are reduced to 1 + N/2.
	// Default: 30
	NNeighbors int `yaml:"n_neighbors"`

	// KNN restricts the kernel to the k nearest neighbors. If false, the
	// full N×N distance matrix is computed and every Gaussian weight above
	// 1e-14 is kept.
	// Default: true
	KNN bool `yaml:"knn"`

	// Method selects the neighbor search.
	// Options: "exact" (chunked distance blocks, kd-tree above
	// ExactThreshold), "umap" (NN-descent seeded by a random projection
	// forest)
	// Default: "exact"
	Method nn.Method `yaml:"method"`

	// Metric is the distance metric of the approximate search.
	// Default: "euclidean"
	Metric string `yaml:"metric"`

	// NComps is the number of diffusion components.
	// Default: 15
	NComps int `yaml:"n_comps"`

	// Alpha is the density normalization exponent of the kernel.
	// Default: 1
	Alpha float64 `yaml:"alpha"`

	// Flavor is the kernel flavor.
	// Options: "haghverdi16", "unweighted" (requires KNN)
	// Default: "haghverdi16"
	Flavor string `yaml:"flavor"`

	// Weights lists the graphs Run writes to the store.
	// Options: "distances", "similarities"
	// Default: ["distances", "similarities"]
	Weights []string `yaml:"weights"`

	// Seed for random number generation.
	// Default: 0
	Seed int64 `yaml:"seed"`

	// NumWorkers for parallel processing.
	// 0 = auto-detect based on CPU cores.
	// Default: 0
	NumWorkers int `yaml:"num_workers"`

	// ExactThreshold is the largest dataset searched with chunked distance
	// blocks; larger dense datasets use a kd-tree.
	// Default: 100000
	ExactThreshold int `yaml:"exact_threshold"`

	// ChunkRows caps the rows of one distance block.
	// Default: 20000
	ChunkRows int `yaml:"chunk_rows"`

	// DenseDerivedThreshold is the number of columns of the M matrix above
	// which it is reduced by PCA before computing pairwise distances.
	// Default: 1000
	DenseDerivedThreshold int `yaml:"dense_derived_threshold"`

	// PCAComponents is the number of principal components of that reduction.
	// Default: 50
	PCAComponents int `yaml:"pca_components"`

	// MaxDensePoints is the largest dataset for which dense N×N derived
	// matrices (M, Ddiff, Lp, commute, MFP) are built.
	// Default: 20000
	MaxDensePoints int `yaml:"max_dense_points"`

	// RowCacheSize bounds the cache of diffusion distance rows.
	// 0 = unbounded.
	// Default: 0
	RowCacheSize int `yaml:"row_cache_size"`

	// Verbose enables progress output.
	// Default: false
	Verbose bool `yaml:"verbose"`

	// Logger receives progress events and warnings.
	// Default: nil (slog.Default())
	Logger *slog.Logger `yaml:"-"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		NNeighbors:            30,
		KNN:                   true,
		Method:                nn.MethodExact,
		Metric:                "euclidean",
		NComps:                15,
		Alpha:                 1,
		Flavor:                graph.FlavorHaghverdi16,
		Weights:               []string{WeightDistances, WeightSimilarities},
		Seed:                  0,
		NumWorkers:            0,
		ExactThreshold:        100000,
		ChunkRows:             20000,
		DenseDerivedThreshold: 1000,
		PCAComponents:         50,
		MaxDensePoints:        20000,
		RowCacheSize:          0,
		Verbose:               false,
	}
}

// LoadConfig reads a YAML configuration file. Fields absent from the file
// keep their default values.
func LoadConfig(path string) (Config, error) {
	config := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return config, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return config, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := config.validate(); err != nil {
		return config, fmt.Errorf("config %s: %w", path, err)
	}
	return config, nil
}

func (c Config) validate() error {
	switch c.Method {
	case nn.MethodExact, nn.MethodApprox:
	default:
		return fmt.Errorf("%w: method %q", ErrInvalidConfig, c.Method)
	}
	switch c.Flavor {
	case graph.FlavorHaghverdi16, graph.FlavorUnweighted:
	default:
		return fmt.Errorf("%w: flavor %q", ErrInvalidConfig, c.Flavor)
	}
	for _, w := range c.Weights {
		if w != WeightDistances && w != WeightSimilarities {
			return fmt.Errorf("%w: weights %q", ErrInvalidConfig, w)
		}
	}
	if c.NNeighbors < 1 {
		return fmt.Errorf("%w: n_neighbors %d", ErrInvalidConfig, c.NNeighbors)
	}
	return nil
}

func (c Config) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}

func (c Config) searchConfig() nn.Config {
	config := nn.DefaultConfig()
	config.K = c.NNeighbors
	config.Method = c.Method
	config.Metric = c.Metric
	config.ExactThreshold = c.ExactThreshold
	config.ChunkRows = c.ChunkRows
	config.Seed = c.Seed
	config.NumWorkers = c.NumWorkers
	config.Logger = c.Logger
	return config
}

func (c Config) denseConfig() diffusion.DenseConfig {
	config := diffusion.DefaultDenseConfig()
	config.MaxPoints = c.MaxDensePoints
	config.PCAThreshold = c.DenseDerivedThreshold
	config.PCAComponents = c.PCAComponents
	config.NumWorkers = c.NumWorkers
	return config
}

// EigenConfig configures one eigendecomposition.
type EigenConfig struct {
	// NComps is the number of eigenpairs. 0 computes the full spectrum.
	NComps int

	// Sort selects the largest (decrease) or smallest (increase) end.
	Sort spectral.Sort

	// Symmetric decomposes the symmetric conjugate of the transition
	// matrix. If false, right and left eigenbases of the transition matrix
	// are derived from it; diffusion distances then cannot be computed.
	Symmetric bool

	// Matrix replaces the similarity matrix as the decomposed operator.
	Matrix graph.Matrix
}

// DefaultEigenConfig returns the eigendecomposition used by the diffusion
// map.
func DefaultEigenConfig() EigenConfig {
	return EigenConfig{
		NComps:    15,
		Sort:      spectral.SortDecrease,
		Symmetric: true,
	}
}
