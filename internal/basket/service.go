package basket

import (
	"context"
	"errors"
	"math"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"sjsage522/pricebot/internal/product"
	"sjsage522/pricebot/internal/store"
	"sjsage522/pricebot/logger"
	"sjsage522/pricebot/metrics"
)

var (
	ErrEmptyBasket     = errors.New("basket is empty")
	ErrNotInBasket     = errors.New("product is not in the basket")
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	ErrUnknownRegion   = errors.New("unknown region")
)

// savedShare is the fraction of spending reported as saved in the cabinet
var savedShare = decimal.NewFromFloat(0.1)

// RemoveOutcome describes what Remove did to a basket line
type RemoveOutcome int

const (
	// Decremented means the line kept a positive quantity
	Decremented RemoveOutcome = iota
	// RemovedLine means the whole line is gone
	RemovedLine
)

// Line is a basket entry joined with current product data
type Line struct {
	Product  product.Product
	Quantity int
}

// Cabinet summarizes a user's order history at current prices
type Cabinet struct {
	Spent  decimal.Decimal
	Saved  decimal.Decimal
	Orders []OrderRecord
}

// Options configure a Service
type Options struct {
	OrderBaseURL  string
	Regions       []string
	DefaultRegion string
}

// Service is the basket aggregator. Mutations for one user are serialized;
// different users proceed in parallel.
type Service struct {
	repo     Repository
	products store.Repository
	locks    *keyedMutex
	opts     Options
	now      func() time.Time
}

// NewService creates a basket service
func NewService(repo Repository, products store.Repository, opts Options) *Service {
	return &Service{
		repo:     repo,
		products: products,
		locks:    newKeyedMutex(),
		opts:     opts,
		now:      time.Now,
	}
}

// update runs fn on the user's state under the user's lock and saves it
func (s *Service) update(ctx context.Context, userID int64, fn func(*State) error) error {
	unlock := s.locks.Lock(userID)
	defer unlock()

	st, err := s.repo.Load(ctx, userID)
	if err != nil {
		return err
	}
	if err := fn(&st); err != nil {
		return err
	}
	return s.repo.Save(ctx, userID, st)
}

func (s *Service) load(ctx context.Context, userID int64) (State, error) {
	unlock := s.locks.Lock(userID)
	defer unlock()
	return s.repo.Load(ctx, userID)
}

// Add merges qty of a product into the basket and mirrors the basket into
// the open order, opening one when the last order is final.
func (s *Service) Add(ctx context.Context, userID, productID int64, qty int) error {
	if qty < 1 {
		return ErrInvalidQuantity
	}

	err := s.update(ctx, userID, func(st *State) error {
		st.Items[productID] += qty
		s.syncOpenOrder(st)
		return nil
	})
	if err != nil {
		return err
	}

	metrics.BasketOperations.WithLabelValues("add").Inc()
	logger.ForBasket().Debug().Int64("user", userID).Int64("product", productID).Int("qty", qty).Msg("Added to basket")
	return nil
}

// Remove takes qty of a product out of the basket. A nil qty, or one at
// least the present quantity, removes the whole line. The open order keeps
// its place in the history and mirrors the basket.
func (s *Service) Remove(ctx context.Context, userID, productID int64, qty *int) (RemoveOutcome, error) {
	if qty != nil && *qty < 1 {
		return 0, ErrInvalidQuantity
	}

	var outcome RemoveOutcome
	err := s.update(ctx, userID, func(st *State) error {
		present, ok := st.Items[productID]
		if !ok {
			return ErrNotInBasket
		}
		if qty != nil && *qty < present {
			st.Items[productID] = present - *qty
			outcome = Decremented
		} else {
			delete(st.Items, productID)
			outcome = RemovedLine
		}
		if open := st.openOrder(); open != nil {
			open.Items = copyItems(st.Items)
			open.Date = s.now()
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	metrics.BasketOperations.WithLabelValues("remove").Inc()
	return outcome, nil
}

// Snapshot joins the basket with current product data, cheapest first.
// Products that no longer exist are left out.
func (s *Service) Snapshot(ctx context.Context, userID int64) ([]Line, error) {
	st, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(st.Items) == 0 {
		return nil, nil
	}

	found, err := s.products.GetProducts(ctx, itemIDs(st.Items))
	if err != nil {
		return nil, err
	}

	lines := make([]Line, 0, len(found))
	for id, qty := range st.Items {
		if p, ok := found[id]; ok {
			lines = append(lines, Line{Product: p, Quantity: qty})
		}
	}
	sort.Slice(lines, func(i, j int) bool {
		a, b := lines[i].Product, lines[j].Product
		if product.LessByPrice(a, b) {
			return true
		}
		if product.LessByPrice(b, a) {
			return false
		}
		return a.ID < b.ID
	})
	return lines, nil
}

// Checkout finalizes the open order (or records a new final one), clears
// the basket and returns the record with its pseudo-order link.
func (s *Service) Checkout(ctx context.Context, userID int64) (OrderRecord, error) {
	var record OrderRecord
	err := s.update(ctx, userID, func(st *State) error {
		if len(st.Items) == 0 {
			return ErrEmptyBasket
		}

		link, err := s.orderURL(ctx, st.Items)
		if err != nil {
			return err
		}

		if open := st.openOrder(); open != nil {
			open.Items = copyItems(st.Items)
			open.Date = s.now()
			open.Final = true
			open.OrderURL = link
			record = *open
		} else {
			record = OrderRecord{
				ID:       uuid.NewString(),
				Date:     s.now(),
				Items:    copyItems(st.Items),
				Final:    true,
				OrderURL: link,
			}
			st.History = append(st.History, record)
		}
		record.Items = copyItems(record.Items)
		st.Items = make(map[int64]int)
		return nil
	})
	if err != nil {
		return OrderRecord{}, err
	}

	metrics.BasketOperations.WithLabelValues("checkout").Inc()
	logger.ForBasket().Info().Int64("user", userID).Str("order", record.ID).Int("lines", len(record.Items)).Msg("Order placed")
	return record, nil
}

// History returns the user's order log, oldest first
func (s *Service) History(ctx context.Context, userID int64) ([]OrderRecord, error) {
	st, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	return st.History, nil
}

// Cabinet totals every order at current prices. Unparsable prices and
// vanished products count as zero.
func (s *Service) Cabinet(ctx context.Context, userID int64) (Cabinet, error) {
	st, err := s.load(ctx, userID)
	if err != nil {
		return Cabinet{}, err
	}

	ids := make(map[int64]int)
	for _, order := range st.History {
		for id := range order.Items {
			ids[id] = 0
		}
	}
	found, err := s.products.GetProducts(ctx, itemIDs(ids))
	if err != nil {
		return Cabinet{}, err
	}

	spent := decimal.Zero
	for _, order := range st.History {
		for id, qty := range order.Items {
			p, ok := found[id]
			if !ok {
				continue
			}
			price := product.ParsePrice(p.Price)
			if math.IsInf(price, 1) {
				continue
			}
			spent = spent.Add(decimal.NewFromFloat(price).Mul(decimal.NewFromInt(int64(qty))))
		}
	}

	return Cabinet{
		Spent:  spent.Round(2),
		Saved:  spent.Mul(savedShare).Round(2),
		Orders: st.History,
	}, nil
}

// SetRegion stores the user's preferred region
func (s *Service) SetRegion(ctx context.Context, userID int64, region string) error {
	region = strings.ToLower(strings.TrimSpace(region))
	if len(s.opts.Regions) > 0 && !contains(s.opts.Regions, region) {
		return ErrUnknownRegion
	}
	return s.update(ctx, userID, func(st *State) error {
		st.Region = region
		return nil
	})
}

// Region returns the user's region or the default one
func (s *Service) Region(ctx context.Context, userID int64) (string, error) {
	st, err := s.load(ctx, userID)
	if err != nil {
		return "", err
	}
	if st.Region == "" {
		return s.opts.DefaultRegion, nil
	}
	return st.Region, nil
}

// syncOpenOrder copies the basket into the open order or opens a new one
func (s *Service) syncOpenOrder(st *State) {
	if open := st.openOrder(); open != nil {
		open.Items = copyItems(st.Items)
		open.Date = s.now()
		return
	}
	st.History = append(st.History, OrderRecord{
		ID:    uuid.NewString(),
		Date:  s.now(),
		Items: copyItems(st.Items),
	})
}

// orderURL joins product links in id order onto the order base URL
func (s *Service) orderURL(ctx context.Context, items map[int64]int) (string, error) {
	ids := itemIDs(items)
	found, err := s.products.GetProducts(ctx, ids)
	if err != nil {
		return "", err
	}

	links := make([]string, 0, len(ids))
	for _, id := range ids {
		if p, ok := found[id]; ok && p.Link != "" {
			links = append(links, p.Link)
		}
	}

	base := s.opts.OrderBaseURL
	if base == "" {
		base = "https://example.com/order"
	}
	return base + "?items=" + url.QueryEscape(strings.Join(links, ",")), nil
}

func itemIDs(items map[int64]int) []int64 {
	ids := make([]int64, 0, len(items))
	for id := range items {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
