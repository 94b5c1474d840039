package pool

import (
	"time"

	"github.com/radieske/prediction-market-poc/internal/market"
)

// DefaultDepth é a quantidade de apostas exibidas por lado
const DefaultDepth = 8

// Snapshot é o resultado de uma única leitura agregada do mercado.
// Todas as projeções de uma mesma resposta devem sair do mesmo Snapshot.
type Snapshot struct {
	Market market.Market
	// Recent são as apostas ativas mais recentes, da mais nova para a mais antiga
	Recent []market.Bet
	// BetCounts é o número de apostas por lado
	BetCounts map[market.Side]int64
	ReadAt    time.Time
}

// SidePool resume o pool de um lado
type SidePool struct {
	Side        market.Side `json:"side"`
	TotalTokens int64       `json:"totalTokens"`
	TotalBets   int64       `json:"totalBets"`
	Price       float64     `json:"price"`
}

// PoolView é a resposta do endpoint de pool
type PoolView struct {
	MarketID    string        `json:"marketId"`
	TokenSymbol string        `json:"tokenSymbol"`
	Status      market.Status `json:"status"`
	YesPool     *SidePool     `json:"yesPool,omitempty"`
	NoPool      *SidePool     `json:"noPool,omitempty"`
	Sides       []SidePool    `json:"sides"`
	PriceYes    float64       `json:"priceYes"`
	PriceNo     float64       `json:"priceNo"`
	TotalVolume int64         `json:"totalVolume"`
	LastUpdated time.Time     `json:"lastUpdated"`
}

// Entry é uma aposta projetada no order book. Price é o preço agregado atual
// do lado; EntryPrice é o preço registrado quando a aposta foi feita.
type Entry struct {
	BetID         string      `json:"betId"`
	Side          market.Side `json:"side"`
	Price         float64     `json:"price"`
	EntryPrice    float64     `json:"entryPrice"`
	Size          int64       `json:"size"`
	TokenSize     int64       `json:"tokenSize"`
	Total         int64       `json:"total"`
	WalletAddress string      `json:"walletAddress,omitempty"`
	Timestamp     time.Time   `json:"timestamp"`
}

// OrderBook é a projeção de exibição; não é um livro de ofertas e não afeta a liquidação
type OrderBook struct {
	MarketID    string                  `json:"marketId"`
	YesOrders   []Entry                 `json:"yesOrders"`
	NoOrders    []Entry                 `json:"noOrders"`
	Orders      map[market.Side][]Entry `json:"orders,omitempty"`
	LastTrade   *Entry                  `json:"lastTrade"`
	Pool        PoolView                `json:"poolData"`
	Volume      int64                   `json:"volume"`
	TokenSymbol string                  `json:"tokenSymbol"`
}

// BuildPoolView monta a visão de pool a partir do snapshot
func BuildPoolView(snap Snapshot) PoolView {
	m := snap.Market
	prices := Prices(m)

	v := PoolView{
		MarketID:    m.ID,
		TokenSymbol: m.TokenSymbol,
		Status:      m.Status,
		TotalVolume: m.TotalVolume,
		LastUpdated: snap.ReadAt,
	}
	for _, s := range m.Sides() {
		v.Sides = append(v.Sides, SidePool{
			Side:        s,
			TotalTokens: m.PoolOf(s),
			TotalBets:   snap.BetCounts[s],
			Price:       prices[s],
		})
	}
	if len(m.Options) == 0 {
		yes, no := v.Sides[0], v.Sides[1]
		v.YesPool, v.NoPool = &yes, &no
		v.PriceYes, v.PriceNo = yes.Price, no.Price
	}
	return v
}

// BuildOrderBook projeta as apostas recentes por lado, limitadas a depth
func BuildOrderBook(snap Snapshot, depth int) OrderBook {
	if depth <= 0 {
		depth = DefaultDepth
	}
	m := snap.Market
	prices := Prices(m)

	ob := OrderBook{
		MarketID:    m.ID,
		Pool:        BuildPoolView(snap),
		Volume:      m.TotalVolume,
		TokenSymbol: m.TokenSymbol,
	}

	bySide := make(map[market.Side][]Entry)
	for _, b := range snap.Recent {
		e := toEntry(b, prices[b.Side])
		if ob.LastTrade == nil {
			last := e
			ob.LastTrade = &last
		}
		if len(bySide[b.Side]) < depth {
			bySide[b.Side] = append(bySide[b.Side], e)
		}
	}

	if len(m.Options) == 0 {
		ob.YesOrders = nonNil(bySide[market.SideYes])
		ob.NoOrders = nonNil(bySide[market.SideNo])
		return ob
	}
	ob.Orders = make(map[market.Side][]Entry, len(m.Options))
	for _, s := range m.Options {
		ob.Orders[s] = nonNil(bySide[s])
	}
	return ob
}

func toEntry(b market.Bet, price float64) Entry {
	return Entry{
		BetID:         b.ID,
		Side:          b.Side,
		Price:         price,
		EntryPrice:    b.EntryPrice,
		Size:          b.StakeAmount,
		TokenSize:     b.StakeTokenAmount,
		Total:         b.StakeAmount,
		WalletAddress: b.WalletAddress,
		Timestamp:     b.CreatedAt,
	}
}

func nonNil(e []Entry) []Entry {
	if e == nil {
		return []Entry{}
	}
	return e
}
