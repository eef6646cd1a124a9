package shortcode

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	"go.uber.org/zap"
)

const (
	// Charset 包含用于生成短码的所有字符
	Charset = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
	// CodeLength 是生成的短码的长度
	CodeLength = 3
	// Capacity 是短码空间大小 62^3
	Capacity = 62 * 62 * 62
	// DefaultMaxAttempts 是单次生成的最大抽取次数
	DefaultMaxAttempts = 64
	// falsePositiveRate 是布隆过滤器的期望误判率
	falsePositiveRate = 0.01
)

// ErrSpaceExhausted 表示短码空间已满或多次抽取均冲突
var ErrSpaceExhausted = errors.New("short code space exhausted")

// Store 是生成器所需的存储能力，由书签仓库实现
type Store interface {
	ShortCodeExists(ctx context.Context, code string) (bool, error)
	CountShortCodes(ctx context.Context) (int64, error)
	AllShortCodes(ctx context.Context) ([]string, error)
}

// Generator 负责生成在存储中尚未使用的短码
//
// 这里的存在性检查只是预检，最终由存储层的唯一索引保证唯一，
// 插入冲突时调用方需要重新生成。
type Generator struct {
	store       Store
	maxAttempts int
	random      func() (string, error)

	mu     sync.RWMutex
	filter *bloom.BloomFilter

	logger *zap.SugaredLogger
}

// NewGenerator 创建一个新的短码生成器实例
func NewGenerator(store Store, maxAttempts int, logger *zap.SugaredLogger) *Generator {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Generator{
		store:       store,
		maxAttempts: maxAttempts,
		random:      func() (string, error) { return RandomCode(CodeLength) },
		filter:      bloom.NewWithEstimates(Capacity, falsePositiveRate),
		logger:      logger.Named("shortcode_generator"),
	}
}

// Seed 将存储中已有的短码载入布隆过滤器
func (g *Generator) Seed(ctx context.Context) error {
	n, err := g.rebuild(ctx)
	if err != nil {
		return err
	}
	g.logger.Infof("已载入 %d 个已用短码", n)
	return nil
}

// rebuild 按存储中的现有短码重建过滤器，清掉已删除短码留下的位
func (g *Generator) rebuild(ctx context.Context) (int, error) {
	codes, err := g.store.AllShortCodes(ctx)
	if err != nil {
		return 0, fmt.Errorf("load short codes: %w", err)
	}

	filter := bloom.NewWithEstimates(Capacity, falsePositiveRate)
	for _, code := range codes {
		filter.AddString(code)
	}

	g.mu.Lock()
	g.filter = filter
	g.mu.Unlock()
	return len(codes), nil
}

// Next 返回一个当前未被使用的短码
//
// 一轮抽取中若有候选被过滤器拦下，过滤器可能已被删除的短码污染，
// 此时按存储重建过滤器再抽一轮；只有存储确实占满或两轮都失败才返回 ErrSpaceExhausted。
func (g *Generator) Next(ctx context.Context) (string, error) {
	used, err := g.store.CountShortCodes(ctx)
	if err != nil {
		return "", fmt.Errorf("count short codes: %w", err)
	}
	if used >= Capacity {
		return "", ErrSpaceExhausted
	}

	for round := 0; round < 2; round++ {
		code, filtered, err := g.draw(ctx)
		if err != nil || code != "" {
			return code, err
		}
		if filtered == 0 || round > 0 {
			break
		}

		g.logger.Infof("过滤器拦下 %d 个候选短码，按存储重建", filtered)
		if _, err := g.rebuild(ctx); err != nil {
			return "", err
		}
	}

	g.logger.Warnf("已尝试 %d 次生成短码，但均存在冲突", g.maxAttempts)
	return "", ErrSpaceExhausted
}

// draw 抽取一轮候选，返回可用短码以及被过滤器拦下的次数
func (g *Generator) draw(ctx context.Context) (string, int, error) {
	filtered := 0
	for i := 0; i < g.maxAttempts; i++ {
		code, err := g.random()
		if err != nil {
			return "", filtered, err
		}
		if g.maybeUsed(code) {
			filtered++
			continue
		}

		exists, err := g.store.ShortCodeExists(ctx, code)
		if err != nil {
			return "", filtered, fmt.Errorf("check short code: %w", err)
		}
		if !exists {
			return code, filtered, nil
		}
		g.MarkUsed(code)
	}
	return "", filtered, nil
}

// MarkUsed 记录一个已被占用的短码
func (g *Generator) MarkUsed(code string) {
	g.mu.Lock()
	g.filter.AddString(code)
	g.mu.Unlock()
}

func (g *Generator) maybeUsed(code string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.filter.TestString(code)
}

// RandomCode 使用加密安全的随机数生成器生成一个给定长度的字符串
func RandomCode(length int) (string, error) {
	b := make([]byte, length)
	n := big.NewInt(int64(len(Charset)))
	for i := range b {
		num, err := rand.Int(rand.Reader, n)
		if err != nil {
			return "", err
		}
		b[i] = Charset[num.Int64()]
	}
	return string(b), nil
}

// Valid 判断字符串是否是合法的短码格式
func Valid(code string) bool {
	if len(code) != CodeLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		c := code[i]
		if !(c >= '0' && c <= '9' || c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z') {
			return false
		}
	}
	return true
}
