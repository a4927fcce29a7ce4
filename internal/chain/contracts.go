package chain

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Minimal ABI fragments for the three deployed contracts. Only the methods
// and events the wallet actually calls are declared.

const erc20ABIJSON = `[
	{"name":"balanceOf","type":"function","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"name":"decimals","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]},
	{"name":"symbol","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
	{"name":"name","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
	{"name":"allowance","type":"function","stateMutability":"view","inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"name":"nonces","type":"function","stateMutability":"view","inputs":[{"name":"owner","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"name":"approve","type":"function","stateMutability":"nonpayable","inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
	{"name":"transfer","type":"function","stateMutability":"nonpayable","inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
	{"name":"Transfer","type":"event","anonymous":false,"inputs":[{"name":"from","type":"address","indexed":true},{"name":"to","type":"address","indexed":true},{"name":"value","type":"uint256","indexed":false}]}
]`

const escrowABIJSON = `[
	{"name":"createCashlink","type":"function","stateMutability":"nonpayable","inputs":[{"name":"amount","type":"uint256"},{"name":"hash","type":"bytes32"}],"outputs":[]},
	{"name":"claim","type":"function","stateMutability":"nonpayable","inputs":[{"name":"code","type":"string"}],"outputs":[]},
	{"name":"CashlinkCreated","type":"event","anonymous":false,"inputs":[{"name":"sender","type":"address","indexed":true},{"name":"hash","type":"bytes32","indexed":true},{"name":"amount","type":"uint256","indexed":false}]}
]`

const donationABIJSON = `[
	{"name":"donateWithPermit","type":"function","stateMutability":"nonpayable","inputs":[{"name":"beneficiaryId","type":"uint256"},{"name":"amount","type":"uint256"},{"name":"deadline","type":"uint256"},{"name":"v","type":"uint8"},{"name":"r","type":"bytes32"},{"name":"s","type":"bytes32"}],"outputs":[]}
]`

var (
	erc20ABI    abi.ABI
	escrowABI   abi.ABI
	donationABI abi.ABI
)

func init() {
	erc20ABI = mustParseABI(erc20ABIJSON)
	escrowABI = mustParseABI(escrowABIJSON)
	donationABI = mustParseABI(donationABIJSON)
}

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(err)
	}
	return parsed
}
