package bloodgas

// Standard bedside acid-base arithmetic. These are fixed textbook formulae;
// they are computed here so the completion service receives the numbers
// instead of being trusted to do arithmetic.

// KPaPerMmHg converts mmHg to kPa (1 kPa = 7.5 mmHg).
const KPaPerMmHg = 1.0 / 7.5

// MmHgPerKPa is the inverse factor, used by the extraction layer when a
// pressure appears to have been mis-scaled.
const MmHgPerKPa = 7.5

// AnionGap computes Na - (Cl + HCO3), all mmol/L.
func AnionGap(sodium, chloride, hco3 float64) float64 {
	return sodium - (chloride + hco3)
}

// AnionGapAlbuminCorrected adjusts the gap for hypoalbuminemia:
// AGcorr = AG + 0.25 * (40 - albumin g/L).
func AnionGapAlbuminCorrected(ag, albuminGPerL float64) float64 {
	return ag + 0.25*(40-albuminGPerL)
}

// WintersExpectedPCO2 returns the expected compensatory pCO2 in kPa for a
// metabolic acidosis with the given HCO3, plus the accepted tolerance.
// Winter's formula: pCO2(mmHg) = 1.5*HCO3 + 8 ± 2.
func WintersExpectedPCO2(hco3 float64) (expected, tolerance float64) {
	return (1.5*hco3 + 8) * KPaPerMmHg, 2 * KPaPerMmHg
}

// StewartSIDa computes the apparent strong ion difference:
// (Na + K) - (Cl + lactate), all mmol/L.
func StewartSIDa(sodium, potassium, chloride, lactate float64) float64 {
	return (sodium + potassium) - (chloride + lactate)
}

// StewartSIDe computes the effective strong ion difference from HCO3 and
// the albumin charge at the measured pH:
// SIDe = HCO3 + albumin(g/L) * (0.123*pH - 0.631).
func StewartSIDe(hco3, albuminGPerL, ph float64) float64 {
	return hco3 + albuminGPerL*(0.123*ph-0.631)
}

// StewartSIG is the strong ion gap, SIDa - SIDe.
func StewartSIG(sida, side float64) float64 {
	return sida - side
}
