package model

// InferFields guesses a table's field names from a sample of records.
// It picks the record with the most populated field keys; on a tie the
// earliest record in slice order wins. Fields that are empty on every
// sampled record cannot be discovered this way.
func InferFields(records []*Record) []string {
	var best *Record
	for _, r := range records {
		if r == nil {
			continue
		}
		if best == nil || len(r.Fields) > len(best.Fields) {
			best = r
		}
	}
	if best == nil {
		return []string{}
	}
	return best.FieldNames()
}
