package ingest

import (
	"errors"
	"fmt"

	"github.com/AugustoL/openscan/internal/core/domain"
	"github.com/AugustoL/openscan/internal/core/normalize"
)

// ErrMissingTxBodies reports a block payload carrying transaction hashes
// instead of full transaction objects. The header is still stored; the caller
// decides whether to refetch with bodies.
var ErrMissingTxBodies = errors.New("block payload has transaction hashes, not bodies")

func fieldUint(m map[string]any, key string) (uint64, error) {
	v, ok := m[key]
	if !ok {
		return 0, fmt.Errorf("%w: missing field %q", normalize.ErrMalformedValue, key)
	}
	n, err := normalize.ToUint64(v)
	if err != nil {
		return 0, fmt.Errorf("field %q: %w", key, err)
	}
	return n, nil
}

func fieldUintOr(m map[string]any, key string, def uint64) (uint64, error) {
	v, ok := m[key]
	if !ok {
		return def, nil
	}
	n, err := normalize.ToUint64(v)
	if err != nil {
		return 0, fmt.Errorf("field %q: %w", key, err)
	}
	return n, nil
}

func fieldString(m map[string]any, key string) (string, error) {
	v, ok := m[key]
	if !ok {
		return "", fmt.Errorf("%w: missing field %q", normalize.ErrMalformedValue, key)
	}
	s, err := normalize.ToCanonicalString(v)
	if err != nil {
		return "", fmt.Errorf("field %q: %w", key, err)
	}
	return s, nil
}

func fieldStringOr(m map[string]any, key, def string) (string, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return def, nil
	}
	s, err := normalize.ToCanonicalString(v)
	if err != nil {
		return "", fmt.Errorf("field %q: %w", key, err)
	}
	return s, nil
}

func fieldQuantity(m map[string]any, key string) (string, error) {
	v, ok := m[key]
	if !ok {
		return "", fmt.Errorf("%w: missing field %q", normalize.ErrMalformedValue, key)
	}
	q, err := normalize.ToQuantity(v)
	if err != nil {
		return "", fmt.Errorf("field %q: %w", key, err)
	}
	return q, nil
}

func fieldQuantityOr(m map[string]any, key, def string) (string, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return def, nil
	}
	q, err := normalize.ToQuantity(v)
	if err != nil {
		return "", fmt.Errorf("field %q: %w", key, err)
	}
	return q, nil
}

// fieldQuantityPtr returns nil when the field is absent or null.
func fieldQuantityPtr(m map[string]any, key string) (*string, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return nil, nil
	}
	q, err := normalize.ToQuantity(v)
	if err != nil {
		return nil, fmt.Errorf("field %q: %w", key, err)
	}
	return &q, nil
}

func fieldStringPtr(m map[string]any, key string) (*string, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return nil, nil
	}
	s, err := normalize.ToCanonicalString(v)
	if err != nil {
		return nil, fmt.Errorf("field %q: %w", key, err)
	}
	return &s, nil
}

// parseBlock normalizes a raw eth_getBlockByNumber payload into a domain
// block. Fields optional on some chains (totalDifficulty, nonce, mixHash,
// baseFeePerGas) get their documented defaults.
func parseBlock(raw map[string]any, chainID uint64) (*domain.Block, error) {
	b := &domain.Block{ChainID: chainID}
	var err error

	if b.Number, err = fieldUint(raw, "number"); err != nil {
		return nil, err
	}
	if b.Hash, err = fieldString(raw, "hash"); err != nil {
		return nil, err
	}
	if b.ParentHash, err = fieldString(raw, "parentHash"); err != nil {
		return nil, err
	}
	if b.Timestamp, err = fieldUint(raw, "timestamp"); err != nil {
		return nil, err
	}
	if b.Miner, err = fieldString(raw, "miner"); err != nil {
		return nil, err
	}
	if b.Difficulty, err = fieldQuantityOr(raw, "difficulty", "0"); err != nil {
		return nil, err
	}
	if b.TotalDifficulty, err = fieldQuantityOr(raw, "totalDifficulty", "0"); err != nil {
		return nil, err
	}
	if b.Size, err = fieldUint(raw, "size"); err != nil {
		return nil, err
	}
	if b.Nonce, err = fieldStringOr(raw, "nonce", "0x0"); err != nil {
		return nil, err
	}
	if b.GasLimit, err = fieldUint(raw, "gasLimit"); err != nil {
		return nil, err
	}
	if b.GasUsed, err = fieldUint(raw, "gasUsed"); err != nil {
		return nil, err
	}
	if b.BaseFeePerGas, err = fieldQuantityPtr(raw, "baseFeePerGas"); err != nil {
		return nil, err
	}
	if b.StateRoot, err = fieldString(raw, "stateRoot"); err != nil {
		return nil, err
	}
	if b.TransactionsRoot, err = fieldString(raw, "transactionsRoot"); err != nil {
		return nil, err
	}
	if b.ReceiptsRoot, err = fieldString(raw, "receiptsRoot"); err != nil {
		return nil, err
	}
	if b.ExtraData, err = fieldStringOr(raw, "extraData", ""); err != nil {
		return nil, err
	}
	if b.LogsBloom, err = fieldStringOr(raw, "logsBloom", ""); err != nil {
		return nil, err
	}
	if b.Sha3Uncles, err = fieldString(raw, "sha3Uncles"); err != nil {
		return nil, err
	}
	if b.MixHash, err = fieldStringOr(raw, "mixHash", "0x0"); err != nil {
		return nil, err
	}
	return b, nil
}

// parseTransaction normalizes an embedded transaction object. Exactly one gas
// fee family survives depending on the payload: legacy gasPrice or fee-market
// maxFeePerGas/maxPriorityFeePerGas.
func parseTransaction(raw map[string]any, chainID uint64) (*domain.Transaction, error) {
	t := &domain.Transaction{}
	var err error

	if t.Hash, err = fieldString(raw, "hash"); err != nil {
		return nil, err
	}
	if t.BlockNumber, err = fieldUint(raw, "blockNumber"); err != nil {
		return nil, err
	}
	if t.BlockHash, err = fieldString(raw, "blockHash"); err != nil {
		return nil, err
	}
	if t.TransactionIndex, err = fieldUint(raw, "transactionIndex"); err != nil {
		return nil, err
	}
	if t.FromAddress, err = fieldString(raw, "from"); err != nil {
		return nil, err
	}
	if t.ToAddress, err = fieldStringPtr(raw, "to"); err != nil {
		return nil, err
	}
	if t.Value, err = fieldQuantity(raw, "value"); err != nil {
		return nil, err
	}
	if t.InputData, err = fieldStringOr(raw, "input", "0x"); err != nil {
		return nil, err
	}
	if t.Nonce, err = fieldUint(raw, "nonce"); err != nil {
		return nil, err
	}
	if t.Gas, err = fieldUint(raw, "gas"); err != nil {
		return nil, err
	}
	if t.GasPrice, err = fieldQuantityPtr(raw, "gasPrice"); err != nil {
		return nil, err
	}
	if t.MaxFeePerGas, err = fieldQuantityPtr(raw, "maxFeePerGas"); err != nil {
		return nil, err
	}
	if t.MaxPriorityFeePerGas, err = fieldQuantityPtr(raw, "maxPriorityFeePerGas"); err != nil {
		return nil, err
	}
	if t.Type, err = fieldUintOr(raw, "type", 0); err != nil {
		return nil, err
	}
	if t.ChainID, err = fieldUintOr(raw, "chainId", chainID); err != nil {
		return nil, err
	}
	if t.V, err = fieldQuantityOr(raw, "v", "0"); err != nil {
		return nil, err
	}
	if t.R, err = fieldStringOr(raw, "r", ""); err != nil {
		return nil, err
	}
	if t.S, err = fieldStringOr(raw, "s", ""); err != nil {
		return nil, err
	}
	return t, nil
}

// parseReceipt normalizes an eth_getTransactionReceipt payload.
func parseReceipt(raw map[string]any) (*domain.Receipt, error) {
	r := &domain.Receipt{}
	var err error

	if r.TransactionHash, err = fieldString(raw, "transactionHash"); err != nil {
		return nil, err
	}
	if r.BlockNumber, err = fieldUint(raw, "blockNumber"); err != nil {
		return nil, err
	}
	if r.BlockHash, err = fieldString(raw, "blockHash"); err != nil {
		return nil, err
	}
	if r.TransactionIndex, err = fieldUint(raw, "transactionIndex"); err != nil {
		return nil, err
	}
	if r.FromAddress, err = fieldString(raw, "from"); err != nil {
		return nil, err
	}
	if r.ToAddress, err = fieldStringPtr(raw, "to"); err != nil {
		return nil, err
	}
	if r.ContractAddress, err = fieldStringPtr(raw, "contractAddress"); err != nil {
		return nil, err
	}
	if r.CumulativeGasUsed, err = fieldUint(raw, "cumulativeGasUsed"); err != nil {
		return nil, err
	}
	if r.GasUsed, err = fieldUint(raw, "gasUsed"); err != nil {
		return nil, err
	}
	if r.EffectiveGasPrice, err = fieldQuantityOr(raw, "effectiveGasPrice", "0"); err != nil {
		return nil, err
	}
	if r.Status, err = fieldUint(raw, "status"); err != nil {
		return nil, err
	}
	if r.Type, err = fieldUintOr(raw, "type", 0); err != nil {
		return nil, err
	}
	if r.LogsBloom, err = fieldStringOr(raw, "logsBloom", ""); err != nil {
		return nil, err
	}
	return r, nil
}

// parseLogs normalizes the logs array embedded in a receipt payload.
func parseLogs(rawLogs []any) ([]*domain.Log, error) {
	logs := make([]*domain.Log, 0, len(rawLogs))
	for i, rawLog := range rawLogs {
		m, ok := rawLog.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: log %d is not an object", normalize.ErrMalformedValue, i)
		}
		l := &domain.Log{}
		var err error

		if l.TransactionHash, err = fieldString(m, "transactionHash"); err != nil {
			return nil, err
		}
		if l.LogIndex, err = fieldUint(m, "logIndex"); err != nil {
			return nil, err
		}
		if l.BlockNumber, err = fieldUint(m, "blockNumber"); err != nil {
			return nil, err
		}
		if l.BlockHash, err = fieldString(m, "blockHash"); err != nil {
			return nil, err
		}
		if l.TransactionIndex, err = fieldUint(m, "transactionIndex"); err != nil {
			return nil, err
		}
		if l.Address, err = fieldString(m, "address"); err != nil {
			return nil, err
		}
		if l.Data, err = fieldStringOr(m, "data", "0x"); err != nil {
			return nil, err
		}

		topics, _ := m["topics"].([]any)
		topicPtrs := []**string{&l.Topic0, &l.Topic1, &l.Topic2, &l.Topic3}
		for j := 0; j < len(topics) && j < len(topicPtrs); j++ {
			s, err := normalize.ToCanonicalString(topics[j])
			if err != nil {
				return nil, fmt.Errorf("log %d topic %d: %w", i, j, err)
			}
			*topicPtrs[j] = &s
		}

		if removed, ok := m["removed"].(bool); ok {
			l.Removed = removed
		}
		logs = append(logs, l)
	}
	return logs, nil
}
