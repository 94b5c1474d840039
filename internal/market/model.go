package market

import (
	"encoding/json"
	"strings"
	"time"
)

// Status representa o estado de um mercado no ciclo de resolução
type Status string

const (
	StatusActive   Status = "active"
	StatusClosing  Status = "closing"
	StatusResolved Status = "resolved"
	StatusDisputed Status = "disputed"
)

// Side é o lado (ou opção) em que a aposta foi feita
type Side string

const (
	SideYes Side = "yes"
	SideNo  Side = "no"
)

// BetStatus: active -> settled, uma única vez
type BetStatus string

const (
	BetActive  BetStatus = "active"
	BetSettled BetStatus = "settled"
)

// BetOutcome é o resultado de uma aposta após a liquidação
type BetOutcome string

const (
	OutcomePending  BetOutcome = "pending"
	OutcomeWon      BetOutcome = "won"
	OutcomeLost     BetOutcome = "lost"
	OutcomeRefunded BetOutcome = "refunded" // pool vencedor vazio, stake devolvido
)

// Market é o modelo persistido de um mercado de previsão.
// Os acumuladores de pool só crescem e são alterados apenas pela colocação de apostas.
type Market struct {
	ID                 string
	Question           string
	QuestionType       string
	ResolutionCriteria string
	TokenSymbol        string
	Status             Status
	OpenedAt           time.Time
	ClosingDate        time.Time

	// Options lista as opções de mercados multi-opção; vazio = binário (yes/no)
	Options []Side
	// Pools guarda o total apostado por opção em mercados multi-opção
	Pools map[Side]int64

	YesPoolTotal int64
	NoPoolTotal  int64
	TotalVolume  int64

	ResolutionOutcome *Side
	ResolutionData    json.RawMessage
	DisputeReason     *string
	ResolvedAt        *time.Time

	ResolutionAttempts int
	NextAttemptAt      *time.Time
	LastError          string
}

// Sides retorna os lados válidos do mercado
func (m Market) Sides() []Side {
	if len(m.Options) > 0 {
		return m.Options
	}
	return []Side{SideYes, SideNo}
}

// ValidSide indica se s é um lado válido do mercado (comparação case-insensitive)
func (m Market) ValidSide(s Side) bool {
	_, ok := m.NormalizeSide(s)
	return ok
}

// NormalizeSide devolve o lado canônico do mercado correspondente a s
func (m Market) NormalizeSide(s Side) (Side, bool) {
	for _, v := range m.Sides() {
		if strings.EqualFold(string(v), strings.TrimSpace(string(s))) {
			return v, true
		}
	}
	return "", false
}

// PoolOf retorna o total apostado em um lado
func (m Market) PoolOf(s Side) int64 {
	if len(m.Options) > 0 {
		return m.Pools[s]
	}
	switch s {
	case SideYes:
		return m.YesPoolTotal
	case SideNo:
		return m.NoPoolTotal
	}
	return 0
}

// IsDue indica se o mercado já passou do fechamento e ainda aguarda resolução automática
func (m Market) IsDue(now time.Time) bool {
	if m.Status != StatusActive && m.Status != StatusClosing {
		return false
	}
	return !now.Before(m.ClosingDate)
}

// AcceptsBets é o mesmo predicado usado pela colocação de apostas
func (m Market) AcceptsBets(now time.Time) bool {
	return m.Status == StatusActive && now.Before(m.ClosingDate)
}

// Terminal indica que o mercado não é mais processado automaticamente
func (m Market) Terminal() bool {
	return m.Status == StatusResolved || m.Status == StatusDisputed
}

// Bet é uma aposta de um usuário em um lado de um mercado
type Bet struct {
	ID               string
	MarketID         string
	UserID           string
	WalletAddress    string
	Side             Side
	StakeAmount      int64 // menor unidade da moeda nativa
	StakeTokenAmount int64
	EntryPrice       float64 // preço do lado no momento da aposta
	Status           BetStatus
	Outcome          BetOutcome
	Payout           int64
	PnL              int64
	CreatedAt        time.Time
	SettledAt        *time.Time
}

// UserStats são as estatísticas agregadas de um usuário, derivadas das apostas.
// WinRate é percentual (0-100).
type UserStats struct {
	UserID            string  `json:"userId"`
	TotalBetsPlaced   int64   `json:"totalBetsPlaced"`
	TotalVolumeTraded int64   `json:"totalVolumeTraded"`
	TotalPnL          int64   `json:"totalPnl"`
	WinRate           float64 `json:"winRate"`
	Wins              int64   `json:"wins"`
	Losses            int64   `json:"losses"`
	ActivePositions   int64   `json:"activePositions"`
}

// ResolutionStats são contadores derivados do estado atual dos mercados
type ResolutionStats struct {
	TotalMarkets       int `json:"totalMarkets"`
	ActiveMarkets      int `json:"activeMarkets"`
	ClosingMarkets     int `json:"closingMarkets"`
	ResolvedMarkets    int `json:"resolvedMarkets"`
	DisputedMarkets    int `json:"disputedMarkets"`
	PendingResolutions int `json:"pendingResolutions"`
	ResolvedToday      int `json:"resolvedToday"`
}

// PendingResolution é a prévia de um mercado aguardando resolução
type PendingResolution struct {
	MarketID      string     `json:"marketId"`
	Question      string     `json:"question"`
	QuestionType  string     `json:"questionType"`
	ClosingDate   time.Time  `json:"closingDate"`
	Status        Status     `json:"status"`
	Attempts      int        `json:"attempts"`
	NextAttemptAt *time.Time `json:"nextAttemptAt,omitempty"`
	LastError     string     `json:"lastError,omitempty"`
}

// Pending monta a prévia a partir do mercado
func (m Market) Pending() PendingResolution {
	return PendingResolution{
		MarketID:      m.ID,
		Question:      m.Question,
		QuestionType:  m.QuestionType,
		ClosingDate:   m.ClosingDate,
		Status:        m.Status,
		Attempts:      m.ResolutionAttempts,
		NextAttemptAt: m.NextAttemptAt,
		LastError:     m.LastError,
	}
}
