package extract

// queryGeneral produces one row per active reference opened after
// @fApertura: reference attributes, lookup descriptions, money totals, and
// the event log pivoted into one column per event kind. Import references
// (Operacion = 1) log into BitacoraEventosImportacion, export references
// (Operacion = 2) into BitacoraEventosExportacion; the CASE arms pick the
// right table per row and MAX keeps the latest capture per kind.
const queryGeneral = `
SELECT
  r.NumeroDeReferencia,
  r.id_referencias,
  p.Pedimento,
  re.regimen            AS Clave_pedimento,
  r.Operacion,
  a_origen.descripcion  AS a_despacho,
  a_llegada.descripcion AS a_llegada,
  c_i.nombre            AS C_Imp_Exp,
  c_f.nombre            AS Facturar_a,
  aa.nombre             AS Agente_Aduanal,
  u.nombre              AS Ejecutivo,
  mt.descripcion        AS medio_trasporte,
  r.facturada           AS facturada,
  r.Cancelada           AS Cancelada,
  r.FechaApertura       AS APERTURA,
  MAX(CASE
      WHEN r.Operacion = 1 AND b.IdEvento =  6 THEN b.FechaHoraCapturada
      WHEN r.Operacion = 2 AND be.IdEvento =  6 THEN be.FechaHoraCapturada
  END) AS LLEGADA_MERCAN,
  MAX(CASE
      WHEN r.Operacion = 1 AND b.IdEvento = 18 THEN b.FechaHoraCapturada
      WHEN r.Operacion = 2 AND be.IdEvento = 18 THEN be.FechaHoraCapturada
  END) AS ENTREGA_CLASIFICA,
  MAX(CASE
      WHEN r.Operacion = 1 AND b.IdEvento = 19 THEN b.FechaHoraCapturada
      WHEN r.Operacion = 2 AND be.IdEvento = 19 THEN be.FechaHoraCapturada
  END) AS INICIO_CLASIFICA,
  MAX(CASE
      WHEN r.Operacion = 1 AND b.IdEvento = 20 THEN b.FechaHoraCapturada
      WHEN r.Operacion = 2 AND be.IdEvento = 20 THEN be.FechaHoraCapturada
  END) AS TERMINO_CLASIFICA,
  MAX(CASE
      WHEN r.Operacion = 1 AND b.IdEvento = 69 THEN b.FechaHoraCapturada
      WHEN r.Operacion = 2 AND be.IdEvento = 69 THEN be.FechaHoraCapturada
  END) AS INICIO_GLOSA,
  MAX(CASE
      WHEN r.Operacion = 1 AND b.IdEvento = 70 THEN b.FechaHoraCapturada
      WHEN r.Operacion = 2 AND be.IdEvento = 70 THEN be.FechaHoraCapturada
  END) AS TERMINO_GLOSA,
  MAX(CASE
      WHEN r.Operacion = 1 AND b.IdEvento = 22 THEN b.FechaHoraCapturada
      WHEN r.Operacion = 2 AND be.IdEvento = 22 THEN be.FechaHoraCapturada
  END) AS ENTREGA_GLOSA,
  MAX(CASE
      WHEN r.Operacion = 1 AND b.IdEvento = 29 THEN b.FechaHoraCapturada
      WHEN r.Operacion = 2 AND be.IdEvento = 29 THEN be.FechaHoraCapturada
  END) AS PAGO_PEDIMENTO,
  MAX(CASE
      WHEN r.Operacion = 1 AND b.IdEvento = 32 THEN b.FechaHoraCapturada
      WHEN r.Operacion = 2 AND be.IdEvento = 32 THEN be.FechaHoraCapturada
  END) AS DESPACHO_MERCAN,
  MAX(CASE
      WHEN r.Operacion = 1 AND b.IdEvento = 47 THEN b.FechaHoraCapturada
      WHEN r.Operacion = 2 AND be.IdEvento = 47 THEN be.FechaHoraCapturada
  END) AS ENTREGA_FAC,
  MAX(CASE
      WHEN r.Operacion = 1 AND b.IdEvento = 48 THEN b.FechaHoraCapturada
      WHEN r.Operacion = 2 AND be.IdEvento = 48 THEN be.FechaHoraCapturada
  END) AS FECHA_FAC,
  MAX(CASE
      WHEN r.Operacion = 1 AND b.IdEvento = 49 THEN b.FechaHoraCapturada
      WHEN r.Operacion = 2 AND be.IdEvento = 49 THEN be.FechaHoraCapturada
  END) AS ENTREGA_FAC_CLI,
  MAX(CASE
      WHEN r.Operacion = 1 AND b.IdEvento = 26 THEN b.FechaHoraCapturada
      WHEN r.Operacion = 2 AND be.IdEvento = 26 THEN be.FechaHoraCapturada
  END) AS ENTREGA_CAPTURA,
  MAX(CASE
      WHEN r.Operacion = 1 AND b.IdEvento = 33 THEN b.FechaHoraCapturada
      WHEN r.Operacion = 2 AND be.IdEvento = 33 THEN be.FechaHoraCapturada
  END) AS INICIO_CAPTURA,
  MAX(CASE
      WHEN r.Operacion = 1 AND b.IdEvento = 42 THEN b.FechaHoraCapturada
      WHEN r.Operacion = 2 AND be.IdEvento = 42 THEN be.FechaHoraCapturada
  END) AS TERMINO_CAPTURA,
  MAX(CASE
      WHEN r.Operacion = 1 AND b.IdEvento = 36 THEN b.FechaHoraCapturada
      WHEN r.Operacion = 2 AND be.IdEvento = 36 THEN be.FechaHoraCapturada
  END) AS PRIMER_RECONOCIMIENTO,
  MAX(p.ADV1)           AS Total_Adv,
  MAX(p.DTA1)           AS Total_DTA,
  MAX(p.IVA1)           AS Total_IVA,
  MAX(p.TOTALIMPUESTOS) AS Total_Imp
FROM referencias r
INNER JOIN PedimentosEncabezado p ON p.id_referencia = r.id_referencias
LEFT JOIN regimen re ON re.id_regimen = r.id_regimen
LEFT JOIN aduana a_origen ON a_origen.id_Aduana = r.id_aduana
LEFT JOIN aduana a_llegada ON a_llegada.id_Aduana = r.Id_AduanaLlegada
LEFT JOIN clientes c_i ON c_i.id_cliente = r.id_cliente
LEFT JOIN clientes c_f ON c_f.id_cliente = r.concargo
LEFT JOIN agentesaduanales aa ON aa.id_agenteaduanal = r.id_agenteaduanal
LEFT JOIN usuarios u ON u.id_usuario = r.IdEjecutivo
LEFT JOIN MediosDeTransporte mt ON mt.IDMedioDeTransporte = p.IDTransporteEnt_Sal
LEFT JOIN BitacoraEventosImportacion b ON b.Referencia = r.id_referencias
LEFT JOIN BitacoraEventosExportacion be ON be.Referencia = r.id_referencias
WHERE r.FechaApertura > @fApertura
  AND r.Cancelada = 0
GROUP BY
  r.NumeroDeReferencia, r.id_referencias, p.Pedimento, re.regimen, r.Operacion,
  a_origen.descripcion, a_llegada.descripcion, c_i.nombre, c_f.nombre,
  aa.nombre, u.nombre, mt.descripcion, r.facturada, r.Cancelada, r.FechaApertura
`

// queryInvoices lists the invoices of references opened after @fApertura.
const queryInvoices = `
SELECT
  r.id_referencias,
  pf.IDFactura,
  pf.NumeroDeFactura AS NumFac,
  pf.Fecha           AS Fecha_c,
  pf.IDIncoter       AS Incoterm,
  pf.Moneda          AS Moneda,
  pf.ImporteFacturaME AS Valor_ME,
  pf.ImporteFacturaUS AS Valor_USD
FROM referencias r
INNER JOIN PedimentosFacturas pf ON r.id_referencias = pf.IDReferencia
WHERE r.FechaApertura > @fApertura
  AND r.Cancelada = 0
`

// queryBackfillEvents re-pivots the event columns for every active
// reference regardless of opening date. Used by the `eventos` backfill job
// to repair historical rows already present in the target.
const queryBackfillEvents = `
SELECT
  r.id_referencias,
  MAX(CASE
      WHEN r.Operacion = 1 AND b.IdEvento =  6 THEN b.FechaHoraCapturada
      WHEN r.Operacion = 2 AND be.IdEvento =  6 THEN be.FechaHoraCapturada
  END) AS LLEGADA_MERCAN,
  MAX(CASE
      WHEN r.Operacion = 1 AND b.IdEvento = 18 THEN b.FechaHoraCapturada
      WHEN r.Operacion = 2 AND be.IdEvento = 18 THEN be.FechaHoraCapturada
  END) AS ENTREGA_CLASIFICA,
  MAX(CASE
      WHEN r.Operacion = 1 AND b.IdEvento = 19 THEN b.FechaHoraCapturada
      WHEN r.Operacion = 2 AND be.IdEvento = 19 THEN be.FechaHoraCapturada
  END) AS INICIO_CLASIFICA,
  MAX(CASE
      WHEN r.Operacion = 1 AND b.IdEvento = 20 THEN b.FechaHoraCapturada
      WHEN r.Operacion = 2 AND be.IdEvento = 20 THEN be.FechaHoraCapturada
  END) AS TERMINO_CLASIFICA,
  MAX(CASE
      WHEN r.Operacion = 1 AND b.IdEvento = 69 THEN b.FechaHoraCapturada
      WHEN r.Operacion = 2 AND be.IdEvento = 69 THEN be.FechaHoraCapturada
  END) AS INICIO_GLOSA,
  MAX(CASE
      WHEN r.Operacion = 1 AND b.IdEvento = 70 THEN b.FechaHoraCapturada
      WHEN r.Operacion = 2 AND be.IdEvento = 70 THEN be.FechaHoraCapturada
  END) AS TERMINO_GLOSA,
  MAX(CASE
      WHEN r.Operacion = 1 AND b.IdEvento = 22 THEN b.FechaHoraCapturada
      WHEN r.Operacion = 2 AND be.IdEvento = 22 THEN be.FechaHoraCapturada
  END) AS ENTREGA_GLOSA,
  MAX(CASE
      WHEN r.Operacion = 1 AND b.IdEvento = 29 THEN b.FechaHoraCapturada
      WHEN r.Operacion = 2 AND be.IdEvento = 29 THEN be.FechaHoraCapturada
  END) AS PAGO_PEDIMENTO,
  MAX(CASE
      WHEN r.Operacion = 1 AND b.IdEvento = 32 THEN b.FechaHoraCapturada
      WHEN r.Operacion = 2 AND be.IdEvento = 32 THEN be.FechaHoraCapturada
  END) AS DESPACHO_MERCAN,
  MAX(CASE
      WHEN r.Operacion = 1 AND b.IdEvento = 47 THEN b.FechaHoraCapturada
      WHEN r.Operacion = 2 AND be.IdEvento = 47 THEN be.FechaHoraCapturada
  END) AS ENTREGA_FAC,
  MAX(CASE
      WHEN r.Operacion = 1 AND b.IdEvento = 48 THEN b.FechaHoraCapturada
      WHEN r.Operacion = 2 AND be.IdEvento = 48 THEN be.FechaHoraCapturada
  END) AS FECHA_FAC,
  MAX(CASE
      WHEN r.Operacion = 1 AND b.IdEvento = 49 THEN b.FechaHoraCapturada
      WHEN r.Operacion = 2 AND be.IdEvento = 49 THEN be.FechaHoraCapturada
  END) AS ENTREGA_FAC_CLI,
  MAX(CASE
      WHEN r.Operacion = 1 AND b.IdEvento = 26 THEN b.FechaHoraCapturada
      WHEN r.Operacion = 2 AND be.IdEvento = 26 THEN be.FechaHoraCapturada
  END) AS ENTREGA_CAPTURA,
  MAX(CASE
      WHEN r.Operacion = 1 AND b.IdEvento = 33 THEN b.FechaHoraCapturada
      WHEN r.Operacion = 2 AND be.IdEvento = 33 THEN be.FechaHoraCapturada
  END) AS INICIO_CAPTURA,
  MAX(CASE
      WHEN r.Operacion = 1 AND b.IdEvento = 42 THEN b.FechaHoraCapturada
      WHEN r.Operacion = 2 AND be.IdEvento = 42 THEN be.FechaHoraCapturada
  END) AS TERMINO_CAPTURA,
  MAX(CASE
      WHEN r.Operacion = 1 AND b.IdEvento = 36 THEN b.FechaHoraCapturada
      WHEN r.Operacion = 2 AND be.IdEvento = 36 THEN be.FechaHoraCapturada
  END) AS PRIMER_RECONOCIMIENTO
FROM referencias r
LEFT JOIN BitacoraEventosImportacion b ON b.Referencia = r.id_referencias
LEFT JOIN BitacoraEventosExportacion be ON be.Referencia = r.id_referencias
WHERE r.Cancelada = 0
GROUP BY r.id_referencias
`

// queryBackfillInvoiced pulls the invoiced flag for every active reference.
const queryBackfillInvoiced = `
SELECT r.id_referencias, r.facturada
FROM referencias r
WHERE r.Cancelada = 0
`

// queryBackfillCancelled pulls the cancellation flag for EVERY reference.
// This is the one extraction that must not filter on Cancelada: the sync
// run only sees active references, so cancellations after the last sync
// are only ever propagated here.
const queryBackfillCancelled = `
SELECT r.id_referencias, r.Cancelada
FROM referencias r
`
