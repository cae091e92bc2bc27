package ml

// FeatureRanker is implemented by models that can attribute a relative
// importance to their input features.
type FeatureRanker interface {
	FeatureImportances(nFeatures int) []float64
}

// FeatureImportances scores features by how often the forest splits on
// them, weighted toward splits near the root. Scores are normalized to
// sum to one. An untrained forest returns nil.
func (f *RandomForest) FeatureImportances(nFeatures int) []float64 {
	if len(f.Roots) == 0 || nFeatures <= 0 {
		return nil
	}

	scores := make([]float64, nFeatures)
	for _, root := range f.Roots {
		walkImportance(root, 0, scores)
	}

	var total float64
	for _, s := range scores {
		total += s
	}
	if total == 0 {
		return scores
	}
	for i := range scores {
		scores[i] /= total
	}
	return scores
}

func walkImportance(n *TreeNode, depth int, scores []float64) {
	if n == nil || n.Leaf {
		return
	}
	if n.Feature >= 0 && n.Feature < len(scores) {
		scores[n.Feature] += 1 / float64(depth+1)
	}
	walkImportance(n.Left, depth+1, scores)
	walkImportance(n.Right, depth+1, scores)
}

// FeatureImportances returns the first usable ranking model's scores, or
// nil when none is trained.
func (e *Ensemble) FeatureImportances(nFeatures int) []float64 {
	for _, en := range e.entries {
		st := en.state.Load()
		if st == nil {
			continue
		}
		if r, ok := st.clf.(FeatureRanker); ok {
			if scores := r.FeatureImportances(nFeatures); scores != nil {
				return scores
			}
		}
	}
	return nil
}
