package engine

import (
	"github.com/starksyncd/starksyncd/internal/types"
	"github.com/starksyncd/starksyncd/p2p/rrclient"
)

// TransactionEngine is the Transactions protocol instantiation of the
// generic stream engine: one countable sub-item per transaction.
type TransactionEngine = Engine[rrclient.TransactionResponse, types.TransactionCommitment, []types.TransactionAndReceipt, types.UnverifiedTransactionData]

// NewTransactionEngine builds a TransactionEngine wired to peers, send,
// and the per-block transaction count/commitment stream.
func NewTransactionEngine(peers PeersFunc, send Requester[rrclient.TransactionResponse], counts CountSource[types.TransactionCommitment], onFault func(error)) *TransactionEngine {
	return &TransactionEngine{
		Capability: string(rrclient.ProtocolTransactions),
		Peers:      peers,
		Send:       send,
		Counts:     counts,
		NewAcc:     func() []types.TransactionAndReceipt { return nil },
		Add: func(acc []types.TransactionAndReceipt, item rrclient.TransactionResponse) ([]types.TransactionAndReceipt, uint64) {
			return append(acc, types.TransactionAndReceipt{
				Transaction: item.Transaction,
				Receipt:     item.Receipt,
			}), 1
		},
		Package: func(_ types.BlockNumber, acc []types.TransactionAndReceipt, commitment types.TransactionCommitment) types.UnverifiedTransactionData {
			return types.UnverifiedTransactionData{
				ExpectedCommitment: commitment,
				Transactions:       acc,
			}
		},
		OnPeerFault: onFault,
	}
}
