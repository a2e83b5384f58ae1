package feed

// TransactionStatus is the terminal state of a payment attempt.
type TransactionStatus string

const (
	StatusSuccess TransactionStatus = "success"
	StatusFailed  TransactionStatus = "failed"
	StatusPending TransactionStatus = "pending"
)

// PaymentMethod is the instrument used for a payment.
type PaymentMethod string

const (
	MethodCreditCard PaymentMethod = "credit_card"
	MethodDebitCard  PaymentMethod = "debit_card"
	MethodUPI        PaymentMethod = "upi"
	MethodNetBanking PaymentMethod = "net_banking"
	MethodWallet     PaymentMethod = "wallet"
)

// ActionType is a remediation the backend can decide on.
type ActionType string

const (
	ActionSwitchGateway ActionType = "switch_gateway"
	ActionIncreaseRetry ActionType = "increase_retry"
	ActionBlockMerchant ActionType = "block_merchant"
	ActionReduceLoad    ActionType = "reduce_load"
	ActionNoAction      ActionType = "no_action"
)

// AgentSource identifies which brain produced a decision.
type AgentSource string

const (
	SourceStudent AgentSource = "student"
	SourceTeacher AgentSource = "teacher"
)

// Transaction is one observed payment attempt as emitted by the backend.
// Timestamps arrive as ISO strings without a timezone offset, so they are
// kept as strings rather than parsed into time.Time.
type Transaction struct {
	ID            string            `json:"id"`
	Amount        float64           `json:"amount"`
	Currency      string            `json:"currency"`
	MerchantID    string            `json:"merchant_id"`
	BankName      string            `json:"bank_name"`
	PaymentMethod PaymentMethod     `json:"payment_method"`
	Status        TransactionStatus `json:"status"`
	ErrorCode     string            `json:"error_code,omitempty"`
	LatencyMs     int               `json:"latency_ms"`
	Timestamp     string            `json:"timestamp"`
}

// Decision is a single remediation decision from the student or teacher.
type Decision struct {
	Action          ActionType  `json:"action"`
	Reasoning       string      `json:"reasoning"`
	ConfidenceScore float64     `json:"confidence_score"`
	AgentSource     AgentSource `json:"agent_source"`
	Timestamp       string      `json:"timestamp"`
}

// DecisionEvent is the payload of a decision frame: the decision plus the
// transaction it applies to.
type DecisionEvent struct {
	Decision      Decision `json:"decision"`
	TransactionID string   `json:"transaction_id"`
	Brain         string   `json:"brain"`
}

// SystemMetrics is the backend's rolling health snapshot. It is replaced
// wholesale on every metrics frame, never merged field by field.
type SystemMetrics struct {
	TotalTransactions      int     `json:"total_transactions"`
	SuccessfulTransactions int     `json:"successful_transactions"`
	FailedTransactions     int     `json:"failed_transactions"`
	SuccessRate            float64 `json:"success_rate"`
	StudentDecisions       int     `json:"student_decisions"`
	TeacherDecisions       int     `json:"teacher_decisions"`
	StudentConfidence      float64 `json:"student_confidence"`
	ChaosActive            bool    `json:"chaos_active"`
	ChaosBank              string  `json:"chaos_bank,omitempty"`
}

// AgentArgument is one agent's position in a council debate.
type AgentArgument struct {
	AgentName       string     `json:"agent_name"`
	Stance          string     `json:"stance"`
	Argument        string     `json:"argument"`
	SuggestedAction ActionType `json:"suggested_action"`
}

// CouncilDebate is the payload of a council_debate frame: the full
// multi-agent deliberation that produced an escalated decision.
type CouncilDebate struct {
	RiskArgument     AgentArgument `json:"risk_argument"`
	GrowthArgument   AgentArgument `json:"growth_argument"`
	ManagerSynthesis string        `json:"manager_synthesis"`
	FinalDecision    Decision      `json:"final_decision"`
	DurationMs       int           `json:"duration_ms"`
}
