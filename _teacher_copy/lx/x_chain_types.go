package lx

import (
	"fmt"
	"math/big"
	"time"
)

// Settlement types

type SettlementStatus int

const (
	SettlementPending SettlementStatus = iota
	SettlementProcessing
	SettlementComplete
	SettlementFailed
	SettlementCancelled
)

type SettlementParticipant struct {
	Address     string
	Role        string // buyer, seller, market_maker, etc.
	Amount      *big.Int
	Fee         *big.Int
	Confirmed   bool
	ConfirmedAt time.Time
}

type SettlementRecord struct {
	BatchID         string
	TransactionHash string
	SettledAt       time.Time
	TotalValue      *big.Int
	TradeCount      int
	GasUsed         uint64
	BlockNumber     uint64
	StateRoot       []byte
}

type ConsensusProof struct {
	Round      uint64
	Validators []string
	Signatures [][]byte
	Timestamp  time.Time
	BlockHash  string
	StateRoot  []byte
}

type StateUpdate struct {
	UpdateID   string
	ChannelID  string
	Sequence   uint64
	FromState  *ChannelState
	ToState    *ChannelState
	Signatures [][]byte
	Timestamp  time.Time
}

type ChannelState struct {
	Balances  map[string]*big.Int
	Nonce     uint64
	StateHash []byte
	Timestamp time.Time
}

// Custody types

type VaultStatus int

const (
	VaultActive VaultStatus = iota
	VaultLocked
	VaultFrozen
	VaultClosed
)

type AssetBalance struct {
	Asset      string
	Available  *big.Int
	Locked     *big.Int
	Pending    *big.Int
	LastUpdate time.Time
}

type AccessControl struct {
	Owner       string
	Admins      []string
	Operators   []string
	Viewers     []string
	Permissions map[string][]string
}

type AuditEntry struct {
	EntryID   string
	Action    string
	Actor     string
	Asset     string
	Amount    *big.Int
	Details   map[string]interface{}
	Timestamp time.Time
	IPAddress string
	UserAgent string
}

type CustodyEvent struct {
	EventID   string
	Type      string
	VaultID   string
	Owner     string
	Asset     string
	Amount    *big.Int
	Details   map[string]interface{}
	Timestamp time.Time
}

type WithdrawalRequest struct {
	RequestID          string
	VaultID            string
	Asset              string
	Amount             *big.Int
	Destination        string
	Status             WithdrawalStatus
	RequiredSignatures int
	Signatures         []*Signature
	CreatedAt          time.Time
	ProcessedAt        *time.Time
	TransactionHash    string
}

type WithdrawalStatus int

const (
	WithdrawalPending WithdrawalStatus = iota
	WithdrawalApproved
	WithdrawalProcessing
	WithdrawalComplete
	WithdrawalRejected
	WithdrawalCancelled
)

type Signature struct {
	SignerID  string
	Signature []byte
	SignedAt  time.Time
	Message   []byte
}

type TimeLock struct {
	LockID      string
	VaultID     string
	Asset       string
	Amount      *big.Int
	UnlockTime  time.Time
	Beneficiary string
	Status      TimeLockStatus
}

type TimeLockStatus int

const (
	TimeLockActive TimeLockStatus = iota
	TimeLockExpired
	TimeLockClaimed
	TimeLockCancelled
)

type WithdrawalLimit struct {
	VaultID      string
	DailyLimit   *big.Int
	WeeklyLimit  *big.Int
	MonthlyLimit *big.Int
	SpentToday   *big.Int
	SpentWeek    *big.Int
	SpentMonth   *big.Int
	LastReset    time.Time
}

func (wl *WithdrawalLimit) CanWithdraw(amount *big.Int) bool {
	// Check if withdrawal is within limits
	if wl.DailyLimit != nil {
		remaining := new(big.Int).Sub(wl.DailyLimit, wl.SpentToday)
		if amount.Cmp(remaining) > 0 {
			return false
		}
	}
	return true
}

// Validator types

type ValidatorInfo struct {
	NodeID         string
	StakeAmount    *big.Int
	StakeStartTime time.Time
	StakeEndTime   time.Time
	DelegatorCount int
	TotalDelegated *big.Int
	RewardsEarned  *big.Int
	SlashingEvents []*SlashingEvent
	Performance    *ValidatorPerformance
	Status         ValidatorStatus
}

type ValidatorStatus int

const (
	ValidatorActive ValidatorStatus = iota
	ValidatorInactive
	ValidatorSlashed
	ValidatorExited
)

type Delegator struct {
	Address       string
	ValidatorID   string
	StakeAmount   *big.Int
	StartTime     time.Time
	EndTime       time.Time
	RewardsEarned *big.Int
	AutoCompound  bool
}

type SlashingEvent struct {
	EventID       string
	ValidatorID   string
	Reason        string
	SlashedAmount *big.Int
	Timestamp     time.Time
	Evidence      []byte
}

type ValidatorPerformance struct {
	Uptime            float64
	BlocksProposed    uint64
	BlocksMissed      uint64
	AttestationRate   float64
	InclusionDistance float64
	RewardEfficiency  float64
}

// Bridge types

type BridgeAsset struct {
	AssetID           string
	Symbol            string
	SourceChain       string
	DestinationChains []string
	Decimals          int
	MinTransfer       *big.Int
	MaxTransfer       *big.Int
	TransferFee       *big.Int
	Paused            bool
}

type BridgeTransfer struct {
	TransferID        string
	Asset             string
	Amount            *big.Int
	From              string
	To                string
	SourceChain       string
	DestinationChain  string
	SourceTxHash      string
	DestinationTxHash string
	Status            BridgeTransferStatus
	Confirmations     int
	CreatedAt         time.Time
	CompletedAt       *time.Time
}

type BridgeTransferStatus int

const (
	TransferInitiated BridgeTransferStatus = iota
	TransferPending
	TransferConfirming
	TransferComplete
	TransferFailed
	TransferRefunded
)

type BridgeValidator struct {
	ValidatorID  string
	PublicKey    []byte
	VotingPower  uint64
	LastSeen     time.Time
	SignedBlocks uint64
	MissedBlocks uint64
}

type BridgeLiquidityPool struct {
	PoolID         string
	Asset          string
	TotalLiquidity *big.Int
	Available      *big.Int
	Locked         *big.Int
	Providers      map[string]*LiquidityProvider
	APY            float64
	LastRebalance  time.Time
}

type TransferLimit struct {
	Asset       string
	MinAmount   *big.Int
	MaxAmount   *big.Int
	DailyLimit  *big.Int
	DailyVolume *big.Int
	LastReset   time.Time
}

type FeeStructure struct {
	Asset         string
	BaseFee       *big.Int
	PercentageFee float64
	MinFee        *big.Int
	MaxFee        *big.Int
	DiscountTiers map[string]float64
}

// Compliance types

type ComplianceEngine struct {
	KYCProviders    []KYCProvider
	AMLCheckers     []AMLChecker
	SanctionsList   *SanctionsList
	RiskScoring     *RiskScoringEngine
	ReportingEngine *ReportingEngine
	ComplianceRules map[string]*ComplianceRule
}

type KYCProvider interface {
	IsVerified(address string) bool
	GetKYCLevel(address string) int
	VerifyIdentity(address string, documents []byte) error
}

type AMLChecker interface {
	Check(asset string, amount *big.Int) (flagged bool, reason string)
	GetRiskScore(address string) float64
	ReportSuspiciousActivity(activity *SuspiciousActivity) error
}

type SanctionsList struct {
	Addresses     map[string]bool
	Entities      map[string]bool
	Jurisdictions map[string]bool
	LastUpdate    time.Time
}

type ComplianceRule struct {
	RuleID      string
	Name        string
	Description string
	Condition   func(interface{}) bool
	Action      func(interface{}) error
	Severity    RuleSeverity
	Enabled     bool
}

type RuleSeverity int

const (
	SeverityInfo RuleSeverity = iota
	SeverityWarning
	SeverityHigh
	SeverityCritical
)

type SuspiciousActivity struct {
	ActivityID string
	Type       string
	Address    string
	Asset      string
	Amount     *big.Int
	Pattern    string
	RiskScore  float64
	Details    map[string]interface{}
	Timestamp  time.Time
}

// Monitoring types

type SettlementMetrics struct {
	TotalSettlements   uint64
	TotalValue         *big.Int
	AverageSettleTime  time.Duration
	SuccessRate        float64
	GasUsedTotal       uint64
	LastSettlement     time.Time
	SettlementsPerHour float64
}

type RiskMonitor struct {
	Alerts          []*RiskAlert
	Thresholds      map[string]float64
	MonitoringRules []*MonitoringRule
	LastCheck       time.Time
}

type MonitoringRule struct {
	RuleID     string
	Name       string
	Condition  func() bool
	AlertLevel AlertLevel
	Actions    []func() error
	Enabled    bool
}

type AlertLevel int

const (
	AlertInfo AlertLevel = iota
	AlertWarning
	AlertCritical
	AlertEmergency
)

type AlertSystem struct {
	Alerts       []*Alert
	Subscribers  map[string]AlertSubscriber
	Channels     []AlertChannel
	Suppressions map[string]time.Time
}

type Alert struct {
	AlertID      string
	Type         string
	Level        AlertLevel
	Message      string
	Details      map[string]interface{}
	Timestamp    time.Time
	Acknowledged bool
}

type AlertSubscriber interface {
	Notify(alert *Alert) error
}

type AlertChannel interface {
	Send(alert *Alert) error
}

// Performance optimization types

type BatchProcessor struct {
	BatchSize     int
	BatchInterval time.Duration
	MaxRetries    int
	RetryDelay    time.Duration
	Queue         chan interface{}
	Workers       int
}

type CacheManager struct {
	Caches         map[string]Cache
	DefaultTTL     time.Duration
	MaxSize        int
	EvictionPolicy string
}

type Cache interface {
	Get(key string) (interface{}, bool)
	Set(key string, value interface{}, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// Factory types

type StateChannelFactory struct {
	ChannelTypes map[string]ChannelType
	Validators   []ChannelValidator
}

type ChannelType interface {
	Create(participants []string, config map[string]interface{}) (*StateChannel, error)
	Validate(channel *StateChannel) error
}

type ChannelValidator interface {
	Validate(update *StateUpdate) error
}

// Signer types

type Signer struct {
	ID         string
	PublicKey  []byte
	PrivateKey []byte // Should be stored securely
	Type       SignerType
	LastSigned time.Time
}

type SignerType int

const (
	SignerHardware SignerType = iota
	SignerSoftware
	SignerRemote
)

type PendingTransaction struct {
	TransactionID string
	Type          string
	Data          []byte
	RequiredSigs  int
	Signatures    []*Signature
	CreatedAt     time.Time
	ExpiresAt     time.Time
}

type ExecutedTransaction struct {
	TransactionID   string
	ExecutedAt      time.Time
	TransactionHash string
	Result          interface{}
	GasUsed         uint64
}

// Pool rebalancer types

type PoolRebalancer struct {
	Strategy       RebalanceStrategy
	Interval       time.Duration
	LastRebalance  time.Time
	ThresholdRatio float64
}

type RebalanceStrategy interface {
	ShouldRebalance(pool *BridgeLiquidityPool) bool
	Rebalance(pool *BridgeLiquidityPool) error
}

type RewardCalculator struct {
	BaseReward      *big.Int
	BonusMultiplier float64
	PenaltyRules    map[string]PenaltyRule
}

type PenaltyRule struct {
	RuleID      string
	Condition   func(*ValidatorInfo) bool
	PenaltyRate float64
}

type SlashingRules struct {
	Rules        map[string]*SlashingRule
	MinSlash     *big.Int
	MaxSlash     *big.Int
	AppealPeriod time.Duration
}

type SlashingRule struct {
	RuleID      string
	Violation   string
	SlashAmount *big.Int
	Evidence    func() []byte
}

type RotationSchedule struct {
	CurrentEpoch  uint64
	EpochDuration time.Duration
	NextRotation  time.Time
	RotationRules map[string]RotationRule
}

type RotationRule struct {
	RuleID    string
	Condition func(*ValidatorInfo) bool
	Priority  int
}

// Helper functions

func NewChannelState() *ChannelState {
	return &ChannelState{
		Balances:  make(map[string]*big.Int),
		Nonce:     0,
		Timestamp: time.Now(),
	}
}

func NewAccessControl(owner string) *AccessControl {
	return &AccessControl{
		Owner:       owner,
		Admins:      make([]string, 0),
		Operators:   make([]string, 0),
		Viewers:     make([]string, 0),
		Permissions: make(map[string][]string),
	}
}

func NewSettlementMetrics() *SettlementMetrics {
	return &SettlementMetrics{
		TotalValue: big.NewInt(0),
	}
}

func (sm *SettlementMetrics) RecordSettlement(batch *SettlementBatch) {
	sm.TotalSettlements++
	sm.TotalValue.Add(sm.TotalValue, batch.TotalValue)
	sm.GasUsedTotal += batch.GasUsed
	sm.LastSettlement = batch.SettledAt

	// Calculate average settle time
	settleTime := batch.SettledAt.Sub(batch.CreatedAt)
	if sm.AverageSettleTime == 0 {
		sm.AverageSettleTime = settleTime
	} else {
		sm.AverageSettleTime = (sm.AverageSettleTime + settleTime) / 2
	}

	// Update success rate
	sm.SuccessRate = float64(sm.TotalSettlements) / float64(sm.TotalSettlements+1) // Simplified
}

// Additional factory functions

func NewValidatorRegistry() *ValidatorRegistry {
	return &ValidatorRegistry{
		Validators:         make(map[NodeID]*ValidatorInfo),
		StakeWeights:       make(map[NodeID]uint64),
		DelegatorSets:      make(map[NodeID][]*Delegator),
		RewardCalculator:   NewRewardCalculator(),
		SlashingConditions: NewSlashingRules(),
		ValidatorRotation:  NewRotationSchedule(),
	}
}

func NewCrossChainBridge() *CrossChainBridge {
	return &CrossChainBridge{
		SupportedAssets:       make(map[string]*BridgeAsset),
		PendingTransfers:      make(map[string]*BridgeTransfer),
		CompletedTransfers:    make(map[string]*BridgeTransfer),
		FailedTransfers:       make(map[string]*BridgeTransfer),
		BridgeValidators:      make([]*BridgeValidator, 0),
		RequiredConfirmations: 15,
		ChallengePeriod:       24 * time.Hour,
		LiquidityPools:        make(map[string]*BridgeLiquidityPool),
		PoolRebalancer:        NewPoolRebalancer(),
		BridgeFees:            make(map[string]*FeeStructure),
		TransferLimits:        make(map[string]*TransferLimit),
	}
}

func NewComplianceEngine() *ComplianceEngine {
	return &ComplianceEngine{
		KYCProviders:    make([]KYCProvider, 0),
		AMLCheckers:     make([]AMLChecker, 0),
		SanctionsList:   NewSanctionsList(),
		RiskScoring:     NewRiskScoringEngine(),
		ReportingEngine: NewReportingEngine(),
		ComplianceRules: make(map[string]*ComplianceRule),
	}
}

func NewAuditTrail() *AuditTrail {
	return &AuditTrail{
		Entries:       make([]*AuditEntry, 0),
		RetentionDays: 2555, // 7 years
	}
}

func NewRiskMonitor() *RiskMonitor {
	return &RiskMonitor{
		Alerts:          make([]*RiskAlert, 0),
		Thresholds:      make(map[string]float64),
		MonitoringRules: make([]*MonitoringRule, 0),
		LastCheck:       time.Now(),
	}
}

func NewBatchProcessor() *BatchProcessor {
	return &BatchProcessor{
		BatchSize:     100,
		BatchInterval: 1 * time.Second,
		MaxRetries:    3,
		RetryDelay:    5 * time.Second,
		Queue:         make(chan interface{}, 10000),
		Workers:       10,
	}
}

func NewCacheManager() *CacheManager {
	return &CacheManager{
		Caches:         make(map[string]Cache),
		DefaultTTL:     5 * time.Minute,
		MaxSize:        10000,
		EvictionPolicy: "LRU",
	}
}

func NewAlertSystem() *AlertSystem {
	return &AlertSystem{
		Alerts:       make([]*Alert, 0),
		Subscribers:  make(map[string]AlertSubscriber),
		Channels:     make([]AlertChannel, 0),
		Suppressions: make(map[string]time.Time),
	}
}

func (as *AlertSystem) TriggerAlert(alertType, message string) {
	alert := &Alert{
		AlertID:   generateAlertID(),
		Type:      alertType,
		Level:     AlertWarning,
		Message:   message,
		Timestamp: time.Now(),
	}

	as.Alerts = append(as.Alerts, alert)

	// Notify subscribers
	for _, subscriber := range as.Subscribers {
		go subscriber.Notify(alert)
	}
}

func generateAlertID() string {
	return fmt.Sprintf("alert_%d", time.Now().UnixNano())
}

// Placeholder factory functions for types that need implementation

func NewRewardCalculator() *RewardCalculator {
	return &RewardCalculator{
		BaseReward:      big.NewInt(1000),
		BonusMultiplier: 1.0,
		PenaltyRules:    make(map[string]PenaltyRule),
	}
}

func NewSlashingRules() *SlashingRules {
	return &SlashingRules{
		Rules:        make(map[string]*SlashingRule),
		MinSlash:     big.NewInt(100),
		MaxSlash:     big.NewInt(10000),
		AppealPeriod: 7 * 24 * time.Hour,
	}
}

func NewRotationSchedule() *RotationSchedule {
	return &RotationSchedule{
		CurrentEpoch:  0,
		EpochDuration: 24 * time.Hour,
		NextRotation:  time.Now().Add(24 * time.Hour),
		RotationRules: make(map[string]RotationRule),
	}
}

func NewPoolRebalancer() *PoolRebalancer {
	return &PoolRebalancer{
		Interval:       1 * time.Hour,
		LastRebalance:  time.Now(),
		ThresholdRatio: 0.1, // 10% imbalance triggers rebalance
	}
}

func NewSanctionsList() *SanctionsList {
	return &SanctionsList{
		Addresses:     make(map[string]bool),
		Entities:      make(map[string]bool),
		Jurisdictions: make(map[string]bool),
		LastUpdate:    time.Now(),
	}
}

func NewRiskScoringEngine() *RiskScoringEngine {
	return &RiskScoringEngine{
		Models:     make(map[string]RiskModel),
		Thresholds: make(map[string]float64),
	}
}

func NewReportingEngine() *ReportingEngine {
	return &ReportingEngine{
		Reports:   make([]*ComplianceReport, 0),
		Templates: make(map[string]ReportTemplate),
	}
}

// Additional placeholder types

type AuditTrail struct {
	Entries       []*AuditEntry
	RetentionDays int
}

type RiskScoringEngine struct {
	Models     map[string]RiskModel
	Thresholds map[string]float64
}

type RiskModel interface {
	Score(data interface{}) float64
}

type ReportingEngine struct {
	Reports   []*ComplianceReport
	Templates map[string]ReportTemplate
}

type ComplianceReport struct {
	ReportID  string
	Type      string
	Period    time.Duration
	Data      interface{}
	CreatedAt time.Time
}

type ReportTemplate interface {
	Generate(data interface{}) (*ComplianceReport, error)
}

// Validator represents a blockchain validator
type Validator struct {
	ID         string
	PublicKey  string
	Stake      *big.Int
	Active     bool
	LastActive time.Time
}

type ConsensusClient interface {
	GetValidators() ([]Validator, error)
	SubmitTransaction(tx []byte) (string, error)
	GetBlockHeight() (uint64, error)
}

type BlockProducer struct {
	CurrentBlock uint64
	BlockTime    time.Duration
}

type StateManager struct {
	CurrentState map[string]interface{}
	StateHistory []map[string]interface{}
}

type ColdStorageVault struct {
	VaultID   string
	Assets    map[string]*big.Int
	Threshold *big.Int
}
