package model

import (
	"math"

	"github.com/cfcosta/docbert/internal/store"
)

// MaxSim computes ColBERT-style late-interaction similarity between a query
// and a document's per-token embeddings: for every query token, the highest
// dot product against any document token, summed across query tokens.
//
//	score = Σ_q max_t (query[q] · doc[t])
//
// Returns 0 for dimension-mismatched or empty inputs rather than erroring;
// callers that need to distinguish "no score" from "zero score" should
// check Query.T/Document.T themselves first.
func MaxSim(query, document store.Matrix) float64 {
	if query.D != document.D || query.D == 0 || query.T == 0 || document.T == 0 {
		return 0
	}

	var total float64
	for qi := 0; qi < query.T; qi++ {
		qVec := query.Data[qi*query.D : (qi+1)*query.D]
		best := math.Inf(-1)
		for di := 0; di < document.T; di++ {
			dVec := document.Data[di*document.D : (di+1)*document.D]
			var dot float64
			for k := 0; k < query.D; k++ {
				dot += float64(qVec[k]) * float64(dVec[k])
			}
			if dot > best {
				best = dot
			}
		}
		total += best
	}
	return total
}
