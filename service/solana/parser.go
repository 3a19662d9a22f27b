package solana

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"unicode/utf8"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// Well-known Solana program IDs
var (
	// SystemProgramID is the native SOL transfer program
	SystemProgramID = solana.SystemProgramID

	// MemoProgramIDSPL is the SPL Memo program (most common)
	MemoProgramIDSPL = solana.MemoProgramID

	// MemoProgramIDLegacy is the legacy memo program (v1)
	MemoProgramIDLegacy = solana.MustPublicKeyFromBase58("Memo1UhkJRfHyvLMcVucJwxXeuD728EqVDDwQDxFMNo")
)

// System Program instruction types
const (
	SystemProgramTransferInstruction = uint32(2)
)

// parseRecord decodes a GetTransactionResult into a Record, collecting every
// System Program transfer and the last memo found in the message.
func parseRecord(sig solana.Signature, result *rpc.GetTransactionResult) (*Record, error) {
	record := &Record{
		Signature: sig.String(),
		Slot:      result.Slot,
	}
	if result.BlockTime != nil {
		record.BlockTime = result.BlockTime.Time().UTC()
	}
	if result.Meta != nil && result.Meta.Err != nil {
		errMsg := fmt.Sprintf("transaction failed: %v", result.Meta.Err)
		record.Err = &errMsg
	}

	if result.Transaction == nil {
		return nil, fmt.Errorf("transaction payload missing")
	}
	tx, err := result.Transaction.GetTransaction()
	if err != nil {
		return nil, fmt.Errorf("failed to decode transaction: %w", err)
	}

	accountKeys := tx.Message.AccountKeys
	for _, instruction := range tx.Message.Instructions {
		if int(instruction.ProgramIDIndex) >= len(accountKeys) {
			continue
		}
		programID := accountKeys[instruction.ProgramIDIndex]

		switch {
		case programID.Equals(SystemProgramID):
			if transfer, err := parseSystemTransfer(instruction, accountKeys); err == nil {
				record.Transfers = append(record.Transfers, transfer)
			}
		case programID.Equals(MemoProgramIDSPL) || programID.Equals(MemoProgramIDLegacy):
			if memo := parseMemo(instruction.Data); memo != "" {
				record.Memo = &memo
			}
		}
	}

	return record, nil
}

// parseSystemTransfer extracts source, destination and lamports from a System
// Program Transfer instruction.
func parseSystemTransfer(instruction solana.CompiledInstruction, accountKeys []solana.PublicKey) (Transfer, error) {
	// System Transfer instruction format:
	// [0..4]  = instruction type (u32, should be 2 for Transfer)
	// [4..12] = lamports (u64)
	if len(instruction.Data) < 12 {
		return Transfer{}, fmt.Errorf("instruction data too short: %d bytes", len(instruction.Data))
	}

	instructionType := binary.LittleEndian.Uint32(instruction.Data[0:4])
	if instructionType != SystemProgramTransferInstruction {
		return Transfer{}, fmt.Errorf("not a transfer instruction: type %d", instructionType)
	}

	// System Transfer accounts: [from, to]
	if len(instruction.Accounts) < 2 {
		return Transfer{}, fmt.Errorf("transfer missing accounts: got %d", len(instruction.Accounts))
	}
	from, to := int(instruction.Accounts[0]), int(instruction.Accounts[1])
	if from >= len(accountKeys) || to >= len(accountKeys) {
		return Transfer{}, fmt.Errorf("transfer account index out of bounds")
	}

	return Transfer{
		Source:      accountKeys[from].String(),
		Destination: accountKeys[to].String(),
		Lamports:    binary.LittleEndian.Uint64(instruction.Data[4:12]),
	}, nil
}

// parseMemo extracts the memo text from a Memo Program instruction.
func parseMemo(data []byte) string {
	// Memo program instructions contain the memo as raw UTF-8 bytes
	// Some memos are base64 encoded, others are plain text
	memo := string(data)

	if decoded, err := base64.StdEncoding.DecodeString(memo); err == nil && isPrintableUTF8(decoded) {
		return string(decoded)
	}

	return memo
}

// isPrintableUTF8 checks that b is valid UTF-8 without NUL bytes.
func isPrintableUTF8(b []byte) bool {
	if !utf8.Valid(b) {
		return false
	}
	for _, c := range b {
		if c == 0 {
			return false
		}
	}
	return true
}
