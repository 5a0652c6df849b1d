package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Algorithm identifies the training algorithm (stable-baselines3 naming)
type Algorithm string

const (
	AlgorithmDQN  Algorithm = "DQN"
	AlgorithmPPO  Algorithm = "PPO"
	AlgorithmA2C  Algorithm = "A2C"
	AlgorithmSAC  Algorithm = "SAC"
	AlgorithmTD3  Algorithm = "TD3"
	AlgorithmDDPG Algorithm = "DDPG"
)

// Algorithms lists the supported algorithms in display order
var Algorithms = []Algorithm{
	AlgorithmDQN, AlgorithmPPO, AlgorithmA2C, AlgorithmSAC, AlgorithmTD3, AlgorithmDDPG,
}

// Valid reports whether a is a supported algorithm
func (a Algorithm) Valid() bool {
	switch a {
	case AlgorithmDQN, AlgorithmPPO, AlgorithmA2C, AlgorithmSAC, AlgorithmTD3, AlgorithmDDPG:
		return true
	}
	return false
}

// PolicyType identifies the policy network architecture
type PolicyType string

const (
	PolicyMlp        PolicyType = "MlpPolicy"
	PolicyCnn        PolicyType = "CnnPolicy"
	PolicyMultiInput PolicyType = "MultiInputPolicy"
)

// Valid reports whether p is a supported policy type
func (p PolicyType) Valid() bool {
	switch p {
	case PolicyMlp, PolicyCnn, PolicyMultiInput:
		return true
	}
	return false
}

// ModelParams is the per-algorithm tuning parameter set. Each algorithm has
// its own strict variant; unknown fields are rejected at decode time rather
// than passed through silently.
type ModelParams interface {
	Algorithm() Algorithm
	Validate() error
}

// Hyperparameters is the complete training configuration sent to the backend
// on job creation. Opaque to the sync core beyond pass-through.
type Hyperparameters struct {
	DefRobot    string      `json:"def_robot"`
	Controller  string      `json:"controller"`
	EnvClass    string      `json:"env_class"`
	Model       Algorithm   `json:"model"`
	Policy      PolicyType  `json:"policy"`
	Timesteps   int64       `json:"timesteps"`
	ModelParams ModelParams `json:"model_params"`
}

// Validate checks the full hyperparameter set at the boundary
func (h *Hyperparameters) Validate() error {
	if h.DefRobot == "" {
		return errors.New("def_robot cannot be empty")
	}
	if bytes.ContainsAny([]byte(h.DefRobot), " \t") {
		return errors.New("def_robot must not contain spaces")
	}
	if !h.Model.Valid() {
		return fmt.Errorf("unknown algorithm: %q", h.Model)
	}
	if !h.Policy.Valid() {
		return fmt.Errorf("unknown policy: %q", h.Policy)
	}
	if h.Timesteps <= 0 {
		return errors.New("timesteps must be greater than zero")
	}
	if h.ModelParams == nil {
		return errors.New("model_params cannot be nil")
	}
	if h.ModelParams.Algorithm() != h.Model {
		return fmt.Errorf("model_params are for %s but model is %s",
			h.ModelParams.Algorithm(), h.Model)
	}
	return h.ModelParams.Validate()
}

// hyperparametersEnvelope carries the raw params through JSON decoding until
// the algorithm is known.
type hyperparametersEnvelope struct {
	DefRobot    string          `json:"def_robot"`
	Controller  string          `json:"controller"`
	EnvClass    string          `json:"env_class"`
	Model       Algorithm       `json:"model"`
	Policy      PolicyType      `json:"policy"`
	Timesteps   int64           `json:"timesteps"`
	ModelParams json.RawMessage `json:"model_params"`
}

// UnmarshalJSON decodes the envelope first, then the algorithm-specific
// parameter variant.
func (h *Hyperparameters) UnmarshalJSON(data []byte) error {
	var env hyperparametersEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	h.DefRobot = env.DefRobot
	h.Controller = env.Controller
	h.EnvClass = env.EnvClass
	h.Model = env.Model
	h.Policy = env.Policy
	h.Timesteps = env.Timesteps
	if len(env.ModelParams) == 0 || bytes.Equal(env.ModelParams, []byte("null")) {
		h.ModelParams = nil
		return nil
	}
	params, err := DecodeModelParams(env.Model, env.ModelParams)
	if err != nil {
		return err
	}
	h.ModelParams = params
	return nil
}

// DecodeModelParams decodes raw JSON into the strict variant for the given
// algorithm, rejecting unknown fields.
func DecodeModelParams(algo Algorithm, raw []byte) (ModelParams, error) {
	var params ModelParams
	switch algo {
	case AlgorithmDQN:
		params = &DQNParams{}
	case AlgorithmPPO:
		params = &PPOParams{}
	case AlgorithmA2C:
		params = &A2CParams{}
	case AlgorithmSAC:
		params = &SACParams{}
	case AlgorithmTD3:
		params = &TD3Params{}
	case AlgorithmDDPG:
		params = &DDPGParams{}
	default:
		return nil, fmt.Errorf("unknown algorithm: %q", algo)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(params); err != nil {
		return nil, fmt.Errorf("invalid %s model_params: %w", algo, err)
	}
	return params, nil
}

// DQNParams holds DQN tuning values
type DQNParams struct {
	LearningRate          float64 `json:"learning_rate"`
	BufferSize            int     `json:"buffer_size"`
	LearningStarts        int     `json:"learning_starts"`
	BatchSize             int     `json:"batch_size"`
	Tau                   float64 `json:"tau"`
	Gamma                 float64 `json:"gamma"`
	TrainFreq             int     `json:"train_freq"`
	GradientSteps         int     `json:"gradient_steps"`
	NSteps                int     `json:"n_steps"`
	TargetUpdateInterval  int     `json:"target_update_interval"`
	ExplorationFraction   float64 `json:"exploration_fraction"`
	ExplorationInitialEps float64 `json:"exploration_initial_eps"`
	ExplorationFinalEps   float64 `json:"exploration_final_eps"`
	MaxGradNorm           float64 `json:"max_grad_norm"`
	Verbose               int     `json:"verbose"`
}

func (p *DQNParams) Algorithm() Algorithm { return AlgorithmDQN }

func (p *DQNParams) Validate() error {
	if err := checkPositive("learning_rate", p.LearningRate); err != nil {
		return err
	}
	if p.BatchSize <= 0 {
		return errors.New("batch_size must be positive")
	}
	return checkUnitRange("gamma", p.Gamma)
}

// PPOParams holds PPO tuning values
type PPOParams struct {
	LearningRate       float64  `json:"learning_rate"`
	NSteps             int      `json:"n_steps"`
	BatchSize          int      `json:"batch_size"`
	NEpochs            int      `json:"n_epochs"`
	Gamma              float64  `json:"gamma"`
	GaeLambda          float64  `json:"gae_lambda"`
	ClipRange          float64  `json:"clip_range"`
	NormalizeAdvantage bool     `json:"normalize_advantage"`
	EntCoef            float64  `json:"ent_coef"`
	VfCoef             float64  `json:"vf_coef"`
	MaxGradNorm        float64  `json:"max_grad_norm"`
	UseSde             bool     `json:"use_sde"`
	SdeSampleFreq      int      `json:"sde_sample_freq"`
	TargetKL           *float64 `json:"target_kl,omitempty"`
	Verbose            int      `json:"verbose"`
}

func (p *PPOParams) Algorithm() Algorithm { return AlgorithmPPO }

func (p *PPOParams) Validate() error {
	if err := checkPositive("learning_rate", p.LearningRate); err != nil {
		return err
	}
	if p.NSteps <= 0 {
		return errors.New("n_steps must be positive")
	}
	if p.BatchSize <= 0 {
		return errors.New("batch_size must be positive")
	}
	return checkUnitRange("gamma", p.Gamma)
}

// A2CParams holds A2C tuning values
type A2CParams struct {
	LearningRate       float64 `json:"learning_rate"`
	NSteps             int     `json:"n_steps"`
	Gamma              float64 `json:"gamma"`
	GaeLambda          float64 `json:"gae_lambda"`
	EntCoef            float64 `json:"ent_coef"`
	VfCoef             float64 `json:"vf_coef"`
	MaxGradNorm        float64 `json:"max_grad_norm"`
	RmsPropEps         float64 `json:"rms_prop_eps"`
	UseSde             bool    `json:"use_sde"`
	SdeSampleFreq      int     `json:"sde_sample_freq"`
	NormalizeAdvantage bool    `json:"normalize_advantage"`
	Verbose            int     `json:"verbose"`
}

func (p *A2CParams) Algorithm() Algorithm { return AlgorithmA2C }

func (p *A2CParams) Validate() error {
	if err := checkPositive("learning_rate", p.LearningRate); err != nil {
		return err
	}
	return checkUnitRange("gamma", p.Gamma)
}

// SACParams holds SAC tuning values. EntCoef is the stable-baselines3
// string form ("auto" or a number rendered as string).
type SACParams struct {
	LearningRate         float64 `json:"learning_rate"`
	BufferSize           int     `json:"buffer_size"`
	LearningStarts       int     `json:"learning_starts"`
	BatchSize            int     `json:"batch_size"`
	Tau                  float64 `json:"tau"`
	Gamma                float64 `json:"gamma"`
	TrainFreq            int     `json:"train_freq"`
	GradientSteps        int     `json:"gradient_steps"`
	NSteps               int     `json:"n_steps"`
	EntCoef              string  `json:"ent_coef"`
	TargetUpdateInterval int     `json:"target_update_interval"`
	UseSde               bool    `json:"use_sde"`
	SdeSampleFreq        int     `json:"sde_sample_freq"`
	UseSdeAtWarmup       bool    `json:"use_sde_at_warmup"`
	Verbose              int     `json:"verbose"`
}

func (p *SACParams) Algorithm() Algorithm { return AlgorithmSAC }

func (p *SACParams) Validate() error {
	if err := checkPositive("learning_rate", p.LearningRate); err != nil {
		return err
	}
	if p.BatchSize <= 0 {
		return errors.New("batch_size must be positive")
	}
	return checkUnitRange("gamma", p.Gamma)
}

// TD3Params holds TD3 tuning values
type TD3Params struct {
	LearningRate      float64 `json:"learning_rate"`
	BufferSize        int     `json:"buffer_size"`
	LearningStarts    int     `json:"learning_starts"`
	BatchSize         int     `json:"batch_size"`
	Tau               float64 `json:"tau"`
	Gamma             float64 `json:"gamma"`
	TrainFreq         int     `json:"train_freq"`
	GradientSteps     int     `json:"gradient_steps"`
	NSteps            int     `json:"n_steps"`
	PolicyDelay       int     `json:"policy_delay"`
	TargetPolicyNoise float64 `json:"target_policy_noise"`
	TargetNoiseClip   float64 `json:"target_noise_clip"`
	Verbose           int     `json:"verbose"`
}

func (p *TD3Params) Algorithm() Algorithm { return AlgorithmTD3 }

func (p *TD3Params) Validate() error {
	if err := checkPositive("learning_rate", p.LearningRate); err != nil {
		return err
	}
	if p.PolicyDelay <= 0 {
		return errors.New("policy_delay must be positive")
	}
	return checkUnitRange("gamma", p.Gamma)
}

// DDPGParams holds DDPG tuning values
type DDPGParams struct {
	LearningRate   float64 `json:"learning_rate"`
	BufferSize     int     `json:"buffer_size"`
	LearningStarts int     `json:"learning_starts"`
	BatchSize      int     `json:"batch_size"`
	Tau            float64 `json:"tau"`
	Gamma          float64 `json:"gamma"`
	TrainFreq      int     `json:"train_freq"`
	GradientSteps  int     `json:"gradient_steps"`
	NSteps         int     `json:"n_steps"`
	Verbose        int     `json:"verbose"`
}

func (p *DDPGParams) Algorithm() Algorithm { return AlgorithmDDPG }

func (p *DDPGParams) Validate() error {
	if err := checkPositive("learning_rate", p.LearningRate); err != nil {
		return err
	}
	return checkUnitRange("gamma", p.Gamma)
}

// DefaultModelParams returns the stable-baselines3 defaults for the given
// algorithm, matching what the trainer would use on its own.
func DefaultModelParams(algo Algorithm) (ModelParams, error) {
	switch algo {
	case AlgorithmDQN:
		return &DQNParams{
			LearningRate: 0.0001, BufferSize: 1000000, LearningStarts: 100,
			BatchSize: 32, Tau: 1.0, Gamma: 0.99, TrainFreq: 4,
			GradientSteps: 1, NSteps: 1, TargetUpdateInterval: 10000,
			ExplorationFraction: 0.1, ExplorationInitialEps: 1.0,
			ExplorationFinalEps: 0.05, MaxGradNorm: 10, Verbose: 2,
		}, nil
	case AlgorithmPPO:
		return &PPOParams{
			LearningRate: 0.0003, NSteps: 2048, BatchSize: 64, NEpochs: 10,
			Gamma: 0.99, GaeLambda: 0.95, ClipRange: 0.2,
			NormalizeAdvantage: true, EntCoef: 0.0, VfCoef: 0.5,
			MaxGradNorm: 0.5, UseSde: false, SdeSampleFreq: -1, Verbose: 2,
		}, nil
	case AlgorithmA2C:
		return &A2CParams{
			LearningRate: 0.0007, NSteps: 5, Gamma: 0.99, GaeLambda: 1.0,
			EntCoef: 0.0, VfCoef: 0.5, MaxGradNorm: 0.5, RmsPropEps: 1e-05,
			UseSde: false, SdeSampleFreq: -1, NormalizeAdvantage: false,
			Verbose: 2,
		}, nil
	case AlgorithmSAC:
		return &SACParams{
			LearningRate: 0.0003, BufferSize: 1000000, LearningStarts: 100,
			BatchSize: 256, Tau: 0.005, Gamma: 0.99, TrainFreq: 1,
			GradientSteps: 1, NSteps: 1, EntCoef: "auto",
			TargetUpdateInterval: 1, UseSde: false, SdeSampleFreq: -1,
			UseSdeAtWarmup: false, Verbose: 2,
		}, nil
	case AlgorithmTD3:
		return &TD3Params{
			LearningRate: 0.001, BufferSize: 1000000, LearningStarts: 100,
			BatchSize: 256, Tau: 0.005, Gamma: 0.99, TrainFreq: 1,
			GradientSteps: 1, NSteps: 1, PolicyDelay: 2,
			TargetPolicyNoise: 0.2, TargetNoiseClip: 0.5, Verbose: 2,
		}, nil
	case AlgorithmDDPG:
		return &DDPGParams{
			LearningRate: 0.001, BufferSize: 1000000, LearningStarts: 100,
			BatchSize: 256, Tau: 0.005, Gamma: 0.99, TrainFreq: 1,
			GradientSteps: 1, NSteps: 1, Verbose: 2,
		}, nil
	default:
		return nil, fmt.Errorf("unknown algorithm: %q", algo)
	}
}

func checkPositive(name string, v float64) error {
	if v <= 0 {
		return fmt.Errorf("%s must be positive, got %g", name, v)
	}
	return nil
}

func checkUnitRange(name string, v float64) error {
	if v < 0 || v > 1 {
		return fmt.Errorf("%s must be in [0, 1], got %g", name, v)
	}
	return nil
}
