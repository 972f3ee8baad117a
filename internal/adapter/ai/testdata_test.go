package ai

// validFeedbackJSON is a complete, well-formed coaching response.
const validFeedbackJSON = `{
  "globalScore": 75,
  "emotions": {
    "score": 72,
    "detected": ["joie", "surprise"],
    "coherence": 68,
    "intensity": 81,
    "comment": "Émotions lisibles."
  },
  "posture": {
    "score": 64,
    "openness": 70,
    "observations": ["épaules tendues"],
    "comment": "Posture un peu fermée."
  },
  "intonation": {
    "score": 77,
    "clarity": 80,
    "rhythm": 71,
    "comment": "Diction claire."
  },
  "expressivite": {
    "score": 69,
    "comment": "Regard expressif."
  },
  "recommendations": ["Relâchez les épaules", "Variez le rythme"],
  "strengths": ["Diction"],
  "summary": "Bonne prise globale."
}`
